package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownDriver is returned by Open for drivers other than postgres and sqlite.
	ErrUnknownDriver = errors.New("unknown database driver")
)
