// Package auth authenticates administrator accounts against the local
// database. Passwords are hashed with Argon2id. Administrators manage
// Consumer and Provider records, they play no part in LTI launches, which
// are authenticated by OAuth signatures.
package auth

import (
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/db/models"
)

var (
	// ErrUserNotFound is returned when an admin user cannot be found.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAccountDisabled is returned when authenticating a disabled account.
	ErrUserAccountDisabled = errors.New("user account is disabled")
	// ErrInvalidPassword is returned when the provided password is incorrect.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUserExists is returned when creating a user whose username is taken.
	ErrUserExists = errors.New("user with username already exists")
)

// Service authenticates admin users against the local database.
type Service struct {
	db *gorm.DB
}

// NewService creates a new auth service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Authenticate checks a username/password pair and returns the account.
func (s *Service) Authenticate(username, password string) (*models.AdminUser, error) {
	var user models.AdminUser

	err := s.db.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if !user.Active {
		return nil, ErrUserAccountDisabled
	}

	if !user.VerifyPassword(password) {
		return nil, ErrInvalidPassword
	}

	return &user, nil
}

// CreateUser creates a new admin account.
func (s *Service) CreateUser(username, password string) (*models.AdminUser, error) {
	var existing models.AdminUser

	err := s.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	user := models.AdminUser{
		Active:   true,
		Username: username,
		Password: models.HashPassword(password),
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// ChangePassword changes an account's password after verifying the old one.
func (s *Service) ChangePassword(userID uint64, oldPassword, newPassword string) error {
	var user models.AdminUser
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to query user: %w", err)
	}

	if !user.VerifyPassword(oldPassword) {
		return ErrInvalidPassword
	}

	return s.db.Model(&models.AdminUser{}).
		Where("id = ?", userID).
		Update("password", models.HashPassword(newPassword)).Error
}
