package store

import "errors"

var (
	// ErrNotFound is returned when no location record exists for a key.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a CAS write loses a race against a
	// concurrent writer for the same key.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable wraps underlying store I/O failures.
	ErrUnavailable = errors.New("store unavailable")
)
