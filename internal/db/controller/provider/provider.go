// Package provider provides CRUD operations for managing WIMS server records.
package provider

import (
	"errors"

	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/db/models"
)

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrProviderNotFound is returned when a provider is not found.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrURLEmpty is returned when attempting to create a provider with an empty URL.
	ErrURLEmpty = errors.New("provider url cannot be empty")
	// ErrProviderAlreadyExists is returned when attempting to create a provider whose URL is taken.
	ErrProviderAlreadyExists = errors.New("provider already exists")
	// ErrClassLimitOutOfRange is returned when the class limit falls outside [5, 500].
	ErrClassLimitOutOfRange = errors.New("provider class limit must be within [5, 500]")
)

// Create creates a new provider. Zero ClassLimit and ExpirationDays get the defaults.
func Create(db *gorm.DB, p *models.Provider) error {
	if db == nil {
		return ErrDBNil
	}
	if p.URL == "" {
		return ErrURLEmpty
	}

	if p.ClassLimit == 0 {
		p.ClassLimit = models.DefaultClassLimit
	}
	if p.ClassLimit < models.MinClassLimit || p.ClassLimit > models.MaxClassLimit {
		return ErrClassLimitOutOfRange
	}
	if p.ExpirationDays == 0 {
		p.ExpirationDays = models.DefaultClassExpirationDays
	}

	var existing models.Provider
	result := db.Where("url = ?", p.URL).First(&existing)
	if result.Error == nil {
		return ErrProviderAlreadyExists
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	return db.Create(p).Error
}

// GetByID retrieves a provider by its ID.
func GetByID(db *gorm.DB, id uint64) (*models.Provider, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var p models.Provider
	result := db.First(&p, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, result.Error
	}

	return &p, nil
}

// GetAll retrieves all providers.
func GetAll(db *gorm.DB) ([]models.Provider, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var providers []models.Provider
	result := db.Find(&providers)
	if result.Error != nil {
		return nil, result.Error
	}

	return providers, nil
}

// AllowConsumer adds a consumer to the provider's allow-list.
func AllowConsumer(db *gorm.DB, p *models.Provider, c *models.Consumer) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Model(p).Association("AllowedConsumers").Append(c)
}

// IsAllowed reports whether a consumer may provision classes on the provider.
func IsAllowed(db *gorm.DB, p *models.Provider, consumerID uint64) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}

	var count int64
	err := db.Table("provider_consumers").
		Where("provider_id = ? AND consumer_id = ?", p.ID, consumerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// Delete deletes a provider by ID.
func Delete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.Provider{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}

	return nil
}
