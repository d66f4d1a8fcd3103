package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when no matching usage record exists.
	ErrNotFound = errors.New("usage record not found")

	// ErrConflict is returned when a record with the given ID already exists.
	ErrConflict = errors.New("usage record already exists")
)
