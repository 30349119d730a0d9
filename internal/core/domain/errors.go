package domain

import "errors"

var (
	// ErrVersionConflict is returned by repositories when a compare-and-swap
	// write finds a version other than the one the caller read.
	ErrVersionConflict = errors.New("optimistic version conflict")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the operation's current status.
	ErrInvalidTransition = errors.New("invalid operation state transition")

	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")

	// ErrNotFound is returned by writes that target a missing row.
	ErrNotFound = errors.New("not found")
)
