package store

import "errors"

// Sentinel errors for remote store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConflict indicates a uniqueness constraint collision. Bulk
	// inserts are all-or-nothing, so a conflict means nothing from the
	// batch was persisted.
	ErrConflict = errors.New("record conflict")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
)
