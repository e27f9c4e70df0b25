package queue

import "errors"

var (
	// ErrClosed indicates the queue has been closed.
	ErrClosed = errors.New("queue is closed")

	// ErrAlreadyProcessing indicates Process was called twice for a queue name.
	ErrAlreadyProcessing = errors.New("queue already has a processor")

	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = errors.New("job not found")
)
