package repository

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write lost the race on
	// (id, last_modified). Callers reload and retry.
	ErrConflict = errors.New("concurrent modification")
)
