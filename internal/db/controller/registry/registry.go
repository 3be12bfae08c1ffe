// Package registry resolves and stores the mappings between LMS-side
// identities (consumer, class, user, activity) and their WIMS-side
// counterparts (server, class, user, sheet).
//
// Mappings are created lazily on the first LTI launch of a given
// context/user/resource and are strictly 1:1: resolving an identity that is
// already bound to a different remote identity fails with ErrMappingConflict
// instead of silently rebinding it.
package registry

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/db/models"
)

// ResolveClass returns the class mapping binding the LMS course context
// lmsUUID to the WIMS class qclass, creating it if it does not exist yet.
func ResolveClass(
	db *gorm.DB,
	consumer *models.Consumer,
	lmsUUID string,
	provider *models.Provider,
	qclass string,
	name string,
) (*models.ClassMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var existing models.ClassMapping

	// forward direction: the course context is already mapped
	result := db.Where("consumer_id = ? AND lms_uuid = ?", consumer.ID, lmsUUID).First(&existing)
	if result.Error == nil {
		if existing.ProviderID != provider.ID || existing.QClass != qclass {
			return nil, errors.Wrapf(ErrMappingConflict,
				"course context %q is bound to class %q, not %q", lmsUUID, existing.QClass, qclass)
		}

		return &existing, nil
	}

	if !isNotFound(result.Error) {
		return nil, result.Error
	}

	// reverse direction: the WIMS class is already mapped to another context
	result = db.Where("provider_id = ? AND q_class = ?", provider.ID, qclass).First(&existing)
	if result.Error == nil {
		return nil, errors.Wrapf(ErrMappingConflict,
			"class %q is bound to course context %q, not %q", qclass, existing.LMSUUID, lmsUUID)
	}

	if !isNotFound(result.Error) {
		return nil, result.Error
	}

	mapping := &models.ClassMapping{
		ConsumerID: consumer.ID,
		LMSUUID:    lmsUUID,
		ProviderID: provider.ID,
		QClass:     qclass,
		Name:       name,
	}

	if result = db.Create(mapping); result.Error != nil {
		return nil, result.Error
	}

	return mapping, nil
}

// ClassByLMS retrieves the class mapping of an LMS course context.
func ClassByLMS(db *gorm.DB, consumerID uint64, lmsUUID string) (*models.ClassMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var mapping models.ClassMapping
	result := db.Preload("Provider").Preload("Consumer").
		Where("consumer_id = ? AND lms_uuid = ?", consumerID, lmsUUID).First(&mapping)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, ErrClassNotFound
		}
		return nil, result.Error
	}

	return &mapping, nil
}

// ResolveUser returns the user mapping binding the LMS user lmsUUID to the
// WIMS login quser within the given class, creating it if needed.
func ResolveUser(
	db *gorm.DB,
	class *models.ClassMapping,
	lmsUUID string,
	quser string,
) (*models.UserMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var existing models.UserMapping

	// The LMS user id is globally unique across the registry.
	result := db.Where("lms_uuid = ?", lmsUUID).First(&existing)
	if result.Error == nil {
		if existing.ClassID != class.ID || existing.QUser != quser {
			return nil, errors.Wrapf(ErrMappingConflict,
				"LMS user %q is bound to login %q in another class", lmsUUID, existing.QUser)
		}

		return &existing, nil
	}

	if !isNotFound(result.Error) {
		return nil, result.Error
	}

	// reverse direction: the WIMS login already belongs to another LMS user
	result = db.Where("class_id = ? AND q_user = ?", class.ID, quser).First(&existing)
	if result.Error == nil {
		return nil, errors.Wrapf(ErrMappingConflict,
			"login %q in class %q is bound to LMS user %q, not %q",
			quser, class.QClass, existing.LMSUUID, lmsUUID)
	}

	if !isNotFound(result.Error) {
		return nil, result.Error
	}

	mapping := &models.UserMapping{
		LMSUUID: lmsUUID,
		ClassID: class.ID,
		QUser:   quser,
	}

	if result = db.Create(mapping); result.Error != nil {
		return nil, result.Error
	}

	return mapping, nil
}

// UserByLMS retrieves a user mapping by its LMS user id, which is unique
// across the whole registry.
func UserByLMS(db *gorm.DB, lmsUUID string) (*models.UserMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var mapping models.UserMapping
	result := db.Where("lms_uuid = ?", lmsUUID).First(&mapping)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}

	return &mapping, nil
}

// UserByQUser retrieves a user mapping by its WIMS login within a class.
func UserByQUser(db *gorm.DB, classID uint64, quser string) (*models.UserMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var mapping models.UserMapping
	result := db.Where("class_id = ? AND q_user = ?", classID, quser).First(&mapping)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}

	return &mapping, nil
}

// DeleteUser removes a user mapping. Launch provisioning rolls a mapping
// back with it when the WIMS account could not be created, so the next
// launch retries instead of pointing at an account that does not exist.
func DeleteUser(db *gorm.DB, userID uint64) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.UserMapping{}, userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ResolveActivity returns the activity mapping binding the LMS resource link
// lmsUUID to the WIMS sheet qsheet within the given class, creating it if needed.
func ResolveActivity(
	db *gorm.DB,
	class *models.ClassMapping,
	lmsUUID string,
	qsheet string,
) (*models.ActivityMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var existing models.ActivityMapping

	result := db.Where("class_id = ? AND lms_uuid = ?", class.ID, lmsUUID).First(&existing)
	if result.Error == nil {
		if existing.QSheet != qsheet {
			return nil, errors.Wrapf(ErrMappingConflict,
				"resource link %q is bound to sheet %q, not %q", lmsUUID, existing.QSheet, qsheet)
		}

		return &existing, nil
	}

	if !isNotFound(result.Error) {
		return nil, result.Error
	}

	result = db.Where("class_id = ? AND q_sheet = ?", class.ID, qsheet).First(&existing)
	if result.Error == nil {
		return nil, errors.Wrapf(ErrMappingConflict,
			"sheet %q in class %q is bound to resource link %q, not %q",
			qsheet, class.QClass, existing.LMSUUID, lmsUUID)
	}

	if !isNotFound(result.Error) {
		return nil, result.Error
	}

	mapping := &models.ActivityMapping{
		ClassID: class.ID,
		LMSUUID: lmsUUID,
		QSheet:  qsheet,
	}

	if result = db.Create(mapping); result.Error != nil {
		return nil, result.Error
	}

	return mapping, nil
}

// ActivityByLMS retrieves an activity mapping by its LMS resource link within a class.
func ActivityByLMS(db *gorm.DB, classID uint64, lmsUUID string) (*models.ActivityMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var mapping models.ActivityMapping
	result := db.Where("class_id = ? AND lms_uuid = ?", classID, lmsUUID).First(&mapping)
	if result.Error != nil {
		if isNotFound(result.Error) {
			return nil, ErrActivityNotFound
		}
		return nil, result.Error
	}

	return &mapping, nil
}

// ListClasses retrieves all class mappings with their consumer and provider loaded.
func ListClasses(db *gorm.DB) ([]models.ClassMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var classes []models.ClassMapping
	result := db.Preload("Consumer").Preload("Provider").Find(&classes)
	if result.Error != nil {
		return nil, result.Error
	}

	return classes, nil
}

// ListActivities retrieves all activity mappings of a class.
func ListActivities(db *gorm.DB, classID uint64) ([]models.ActivityMapping, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var activities []models.ActivityMapping
	result := db.Where("class_id = ?", classID).Find(&activities)
	if result.Error != nil {
		return nil, result.Error
	}

	return activities, nil
}

// DeleteClass removes a class mapping together with its user mappings,
// activity mappings and grade links. Used by the reconciliation job when the
// class no longer exists on its WIMS server.
func DeleteClass(db *gorm.DB, classID uint64) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		userIDs := tx.Model(&models.UserMapping{}).Select("id").Where("class_id = ?", classID)
		if err := tx.Where("user_mapping_id IN (?)", userIDs).Delete(&models.GradeLink{}).Error; err != nil {
			return err
		}

		if err := tx.Where("class_id = ?", classID).Delete(&models.UserMapping{}).Error; err != nil {
			return err
		}

		if err := tx.Where("class_id = ?", classID).Delete(&models.ActivityMapping{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.ClassMapping{}, classID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrClassNotFound
		}

		return nil
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
