package store

import "errors"

// Sentinel errors shared by every storage driver.
var (
	ErrConflict            = errors.New("reservation overlaps an existing booking")
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrCorruptRecord       = errors.New("corrupt stored record")
)
