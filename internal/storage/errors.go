package storage

import "errors"

// Sentinel errors shared by every store implementation. Simulation
// history is append-only, so stores reject updates rather than merge.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an
	// existing key. Re-persisting a run with identical parameters is
	// the usual cause.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
