package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrMigrationRunning is returned when a migration is already in flight.
	ErrMigrationRunning = errors.New("a migration is already running")
)
