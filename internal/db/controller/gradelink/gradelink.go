// Package gradelink stores the callback targets used to report grades back
// to an LMS: for each (user, activity) pair, the sourcedid token and the
// outcomes URL issued by the LMS at launch time.
package gradelink

import (
	"errors"

	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/db/models"
)

const pairQueryPattern = "user_mapping_id = ? AND activity_mapping_id = ?"

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrGradeLinkNotFound is returned when no grade link exists for a
	// (user, activity) pair.
	ErrGradeLinkNotFound = errors.New("grade link not found")
)

// Upsert creates or updates the grade link of a (user, activity) pair.
// The LMS may reissue sourcedid tokens across sessions, so a re-launch
// overwrites the stored values instead of creating a duplicate row.
func Upsert(
	db *gorm.DB,
	userMappingID uint64,
	activityMappingID uint64,
	sourcedID string,
	url string,
) (*models.GradeLink, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var link models.GradeLink
	result := db.Where(pairQueryPattern, userMappingID, activityMappingID).First(&link)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		link = models.GradeLink{
			UserMappingID:     userMappingID,
			ActivityMappingID: activityMappingID,
			SourcedID:         sourcedID,
			URL:               url,
		}

		if result = db.Create(&link); result.Error != nil {
			return nil, result.Error
		}

		return &link, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}

	link.SourcedID = sourcedID
	link.URL = url
	if result = db.Save(&link); result.Error != nil {
		return nil, result.Error
	}

	return &link, nil
}

// Get retrieves the grade link of a (user, activity) pair.
func Get(db *gorm.DB, userMappingID, activityMappingID uint64) (*models.GradeLink, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var link models.GradeLink
	result := db.Where(pairQueryPattern, userMappingID, activityMappingID).First(&link)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrGradeLinkNotFound
		}
		return nil, result.Error
	}

	return &link, nil
}

// ListForActivity retrieves every grade link of an activity with the user
// mappings loaded. Order is unspecified.
func ListForActivity(db *gorm.DB, activityMappingID uint64) ([]models.GradeLink, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var links []models.GradeLink
	result := db.Preload("User").Where("activity_mapping_id = ?", activityMappingID).Find(&links)
	if result.Error != nil {
		return nil, result.Error
	}

	return links, nil
}
