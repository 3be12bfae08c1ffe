package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// AdminUser represents an administrator account allowed to manage Consumer
// and Provider records through the admin API.
type AdminUser struct {
	// ID is the unique identifier for the admin user.
	ID uint64 `gorm:"primaryKey"`
	// Active indicates whether the account can log in.
	Active bool
	// Username is the unique username for login.
	Username string `gorm:"unique;size:100;not null"`
	// Password is the Argon2id hashed password.
	Password string `gorm:"size:255"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the AdminUser model.
func (AdminUser) TableName() string {
	return "admin_users"
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
// It uses the default Argon2id parameters for secure password hashing.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the user's stored hashed password.
// It uses constant-time comparison to prevent timing attacks.
// Returns true if the password matches, false otherwise.
func (u *AdminUser) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
