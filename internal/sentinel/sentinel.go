package sentinel

import "errors"

// Sentinel dependency errors. Dependencies should return these (optionally wrapped)
// so services can translate them into domain errors exactly once.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")

	// ErrLockTimeout is returned when a row lock could not be acquired in
	// time. Callers may retry; the transaction has already rolled back.
	ErrLockTimeout = errors.New("lock timeout")
)
