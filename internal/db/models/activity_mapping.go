package models

import "time"

// ActivityMapping binds one LMS resource link to one exercise sheet within
// a WIMS class. Both the LMS resource link and the sheet are unique per class.
type ActivityMapping struct {
	// ID is the unique identifier for the activity mapping.
	ID uint64 `gorm:"primaryKey"`
	// ClassID is the class mapping the activity belongs to.
	ClassID uint64 `gorm:"not null;uniqueIndex:idx_activity_class_lms;uniqueIndex:idx_activity_class_qsheet"`
	// LMSUUID is the opaque resource link identifier sent by the LMS
	// ('resource_link_id' LTI parameter), unique per class.
	LMSUUID string `gorm:"size:256;not null;uniqueIndex:idx_activity_class_lms"`
	// QSheet is the WIMS-native sheet identifier, unique per class.
	QSheet string `gorm:"size:256;not null;uniqueIndex:idx_activity_class_qsheet"`
	// Class is the associated class mapping (loaded via foreign key).
	// When a class mapping is deleted, its activity mappings are removed (CASCADE).
	Class ClassMapping `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the mapping was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the mapping was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the ActivityMapping model.
func (ActivityMapping) TableName() string {
	return "activity_mappings"
}
