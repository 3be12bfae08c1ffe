package models

import "time"

// GradeLink stores where and how to send a grade back to the LMS for one
// (user, activity) pair. The sourcedid token and the callback URL are issued
// by the LMS at launch time and may be reissued across sessions, so there is
// at most one grade link per pair and a re-launch overwrites it.
type GradeLink struct {
	ID uint64 `gorm:"primaryKey"`
	// UserMappingID references the user the grade belongs to.
	UserMappingID uint64 `gorm:"not null;uniqueIndex:idx_gradelink_user_activity"`
	// ActivityMappingID references the graded activity.
	ActivityMappingID uint64 `gorm:"not null;uniqueIndex:idx_gradelink_user_activity"`
	// SourcedID is the opaque token identifying the gradebook cell to
	// update ('lis_result_sourcedid' LTI parameter).
	SourcedID string `gorm:"size:256;not null"`
	// URL is the LMS outcomes endpoint results are posted to
	// ('lis_outcome_service_url' LTI parameter).
	URL string `gorm:"size:1023;not null"`
	// User is the associated user mapping (loaded via foreign key).
	User UserMapping `gorm:"foreignKey:UserMappingID;constraint:OnDelete:CASCADE"`
	// Activity is the associated activity mapping (loaded via foreign key).
	Activity ActivityMapping `gorm:"foreignKey:ActivityMappingID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the link was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the link was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the GradeLink model.
func (GradeLink) TableName() string {
	return "grade_links"
}
