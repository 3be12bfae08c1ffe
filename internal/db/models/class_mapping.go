package models

import "time"

// ClassMapping binds one LMS course context to one class on a WIMS server.
// A course context maps to exactly one WIMS class and vice versa: both the
// (consumer, LMS id) pair and the (provider, qclass) pair are unique.
type ClassMapping struct {
	// ID is the unique identifier for the class mapping.
	ID uint64 `gorm:"primaryKey"`
	// ConsumerID is the LMS the course context belongs to.
	ConsumerID uint64 `gorm:"not null;uniqueIndex:idx_class_consumer_lms"`
	// LMSUUID is the opaque course context identifier sent by the LMS
	// ('context_id' LTI parameter), unique per consumer.
	LMSUUID string `gorm:"size:256;not null;uniqueIndex:idx_class_consumer_lms"`
	// ProviderID is the WIMS server the class lives on.
	ProviderID uint64 `gorm:"not null;uniqueIndex:idx_class_provider_qclass"`
	// QClass is the WIMS-native class identifier, unique per provider.
	QClass string `gorm:"size:256;not null;uniqueIndex:idx_class_provider_qclass"`
	// Name is the display name of the class.
	Name string `gorm:"size:2048;not null"`
	// Consumer is the associated LMS (loaded via foreign key).
	Consumer Consumer `gorm:"foreignKey:ConsumerID;constraint:OnDelete:CASCADE"`
	// Provider is the associated WIMS server (loaded via foreign key).
	Provider Provider `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the mapping was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the mapping was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the ClassMapping model.
func (ClassMapping) TableName() string {
	return "class_mappings"
}
