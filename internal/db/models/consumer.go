// Package models contains database model definitions.
package models

import "time"

// Consumer represents an LMS instance that launches WIMS activities
// through this service. Consumers are created by administrators and are
// long-lived; every inbound LTI launch is attributed to exactly one
// Consumer via its OAuth consumer key.
type Consumer struct {
	// ID is the unique identifier for the consumer.
	ID uint64 `gorm:"primaryKey"`
	// UUID is the stable identifier supplied by the LMS itself, equal to
	// the 'tool_consumer_instance_guid' LTI parameter. It is commonly the
	// DNS name of the LMS.
	UUID string `gorm:"size:2048;not null"`
	// Name is the display name of the LMS.
	Name string `gorm:"size:2048;not null"`
	// URL is the base URL of the LMS.
	URL string `gorm:"size:2048;not null"`
	// Key is the OAuth consumer key the LMS authenticates with.
	// Globally unique across all consumers.
	Key string `gorm:"size:128;uniqueIndex;not null"`
	// Secret is the OAuth shared secret paired with Key. It signs the
	// outcomes requests sent back to this consumer.
	Secret string `gorm:"size:128;not null"`
	// CreatedAt is the timestamp when the consumer was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the consumer was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Consumer model.
func (Consumer) TableName() string {
	return "consumers"
}
