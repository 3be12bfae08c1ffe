package registry

import (
	"errors"
)

var (
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
	// ErrMappingConflict is returned when a resolution would bind an
	// LMS-side identity and a WIMS-side identity that are each already
	// bound to something else. Mappings are 1:1 in both directions.
	ErrMappingConflict = errors.New("identity is already mapped to a different remote identity")
	// ErrClassNotFound is returned when a class mapping lookup misses.
	ErrClassNotFound = errors.New("class mapping not found")
	// ErrUserNotFound is returned when a user mapping lookup misses.
	ErrUserNotFound = errors.New("user mapping not found")
	// ErrActivityNotFound is returned when an activity mapping lookup misses.
	ErrActivityNotFound = errors.New("activity mapping not found")
)
