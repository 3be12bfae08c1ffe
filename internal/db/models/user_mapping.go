package models

import "time"

// UserMapping binds one LMS user to one WIMS user account inside a class.
// The LMS-side identifier is globally unique across the whole registry,
// the WIMS login is unique within its class.
type UserMapping struct {
	// ID is the unique identifier for the user mapping.
	ID uint64 `gorm:"primaryKey"`
	// LMSUUID is the opaque user identifier sent by the LMS
	// ('user_id' LTI parameter). Globally unique.
	LMSUUID string `gorm:"size:256;uniqueIndex;not null"`
	// ClassID is the class mapping this user belongs to.
	ClassID uint64 `gorm:"not null;uniqueIndex:idx_user_class_quser"`
	// QUser is the WIMS-native login of the user, unique within its class.
	QUser string `gorm:"size:256;not null;uniqueIndex:idx_user_class_quser"`
	// Class is the associated class mapping (loaded via foreign key).
	// When a class mapping is deleted, its user mappings are removed (CASCADE).
	Class ClassMapping `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the mapping was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the mapping was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the UserMapping model.
func (UserMapping) TableName() string {
	return "user_mappings"
}
