package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrVersionConflict indicates a conditional update lost a race against a
	// concurrent writer and must be retried or surfaced.
	ErrVersionConflict = errors.New("repository: version conflict")
	// ErrDuplicate indicates an insert violated a unique constraint.
	ErrDuplicate = errors.New("repository: duplicate record")
)
