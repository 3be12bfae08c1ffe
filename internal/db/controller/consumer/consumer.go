// Package consumer provides CRUD operations for managing LMS consumer records.
package consumer

import (
	"errors"

	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/db/models"
)

const keyQueryPattern = "key = ?"

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrConsumerNotFound is returned when a consumer is not found.
	ErrConsumerNotFound = errors.New("consumer not found")
	// ErrKeyEmpty is returned when attempting to create or look up a consumer with an empty key.
	ErrKeyEmpty = errors.New("consumer key cannot be empty")
	// ErrConsumerAlreadyExists is returned when attempting to create a consumer whose key is taken.
	ErrConsumerAlreadyExists = errors.New("consumer already exists")
)

// Create creates a new consumer.
func Create(db *gorm.DB, c *models.Consumer) error {
	if db == nil {
		return ErrDBNil
	}
	if c.Key == "" {
		return ErrKeyEmpty
	}

	// Check the key is not taken yet
	var existing models.Consumer
	result := db.Where(keyQueryPattern, c.Key).First(&existing)
	if result.Error == nil {
		return ErrConsumerAlreadyExists
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	return db.Create(c).Error
}

// GetByKey retrieves a consumer by its OAuth consumer key.
func GetByKey(db *gorm.DB, key string) (*models.Consumer, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if key == "" {
		return nil, ErrKeyEmpty
	}

	var c models.Consumer
	result := db.Where(keyQueryPattern, key).First(&c)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrConsumerNotFound
		}
		return nil, result.Error
	}

	return &c, nil
}

// GetByID retrieves a consumer by its ID.
func GetByID(db *gorm.DB, id uint64) (*models.Consumer, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var c models.Consumer
	result := db.First(&c, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrConsumerNotFound
		}
		return nil, result.Error
	}

	return &c, nil
}

// GetAll retrieves all consumers.
func GetAll(db *gorm.DB) ([]models.Consumer, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var consumers []models.Consumer
	result := db.Find(&consumers)
	if result.Error != nil {
		return nil, result.Error
	}

	return consumers, nil
}

// Delete deletes a consumer by ID.
func Delete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.Consumer{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConsumerNotFound
	}

	return nil
}
