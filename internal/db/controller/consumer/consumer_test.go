package consumer

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wims-lti/wims-lti/internal/db/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	// Migrate the schema
	err = db.AutoMigrate(&models.Consumer{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

// seedConsumers inserts test data into the database.
func seedConsumers(t *testing.T, db *gorm.DB, consumers []models.Consumer) {
	t.Helper()
	for _, c := range consumers {
		err := db.Create(&c).Error
		require.NoError(t, err, "failed to seed test data")
	}
}

func TestCreate(t *testing.T) {
	db := setupTestDB(t)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		consumer      models.Consumer
		seedData      []models.Consumer
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			consumer:      models.Consumer{Key: "moodle", Secret: "secret"},
			expectedError: ErrDBNil,
		},
		{
			name:          "empty key",
			dbParam:       db,
			consumer:      models.Consumer{Secret: "secret"},
			expectedError: ErrKeyEmpty,
		},
		{
			name:     "successful create",
			dbParam:  db,
			consumer: models.Consumer{Key: "moodle", Secret: "secret", Name: "Moodle"},
		},
		{
			name:     "duplicate key",
			dbParam:  db,
			consumer: models.Consumer{Key: "moodle", Secret: "other"},
			seedData: []models.Consumer{
				{Key: "moodle", Secret: "secret", Name: "Moodle"},
			},
			expectedError: ErrConsumerAlreadyExists,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Clean database for each test
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM consumers")
			}

			if tc.seedData != nil {
				seedConsumers(t, tc.dbParam, tc.seedData)
			}

			err := Create(tc.dbParam, &tc.consumer)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
			} else {
				require.NoError(t, err)
				assert.NotZero(t, tc.consumer.ID)
			}
		})
	}
}

func TestGetByKey(t *testing.T) {
	db := setupTestDB(t)

	testCases := []struct {
		name          string
		dbParam       *gorm.DB
		key           string
		seedData      []models.Consumer
		expectedError error
	}{
		{
			name:          "nil database",
			dbParam:       nil,
			key:           "moodle",
			expectedError: ErrDBNil,
		},
		{
			name:          "empty key",
			dbParam:       db,
			key:           "",
			expectedError: ErrKeyEmpty,
		},
		{
			name:          "consumer not found",
			dbParam:       db,
			key:           "nonexistent",
			expectedError: ErrConsumerNotFound,
		},
		{
			name:    "successful get",
			dbParam: db,
			key:     "moodle",
			seedData: []models.Consumer{
				{Key: "moodle", Secret: "secret", Name: "Moodle"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.dbParam != nil {
				tc.dbParam.Exec("DELETE FROM consumers")
			}

			if tc.seedData != nil {
				seedConsumers(t, tc.dbParam, tc.seedData)
			}

			c, err := GetByKey(tc.dbParam, tc.key)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, c)
			} else {
				require.NoError(t, err)
				require.NotNil(t, c)
				assert.Equal(t, tc.key, c.Key)
				assert.Equal(t, "secret", c.Secret)
			}
		})
	}
}

func TestGetAll(t *testing.T) {
	db := setupTestDB(t)

	consumers, err := GetAll(db)
	require.NoError(t, err)
	assert.Empty(t, consumers)

	seedConsumers(t, db, []models.Consumer{
		{Key: "moodle", Secret: "s1"},
		{Key: "canvas", Secret: "s2"},
	})

	consumers, err = GetAll(db)
	require.NoError(t, err)
	assert.Len(t, consumers, 2)

	_, err = GetAll(nil)
	require.ErrorIs(t, err, ErrDBNil)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)

	err := Delete(nil, 1)
	require.ErrorIs(t, err, ErrDBNil)

	err = Delete(db, 999)
	require.ErrorIs(t, err, ErrConsumerNotFound)

	c := models.Consumer{Key: "moodle", Secret: "secret"}
	require.NoError(t, db.Create(&c).Error)

	err = Delete(db, c.ID)
	require.NoError(t, err)

	_, err = GetByID(db, c.ID)
	require.ErrorIs(t, err, ErrConsumerNotFound)
}
