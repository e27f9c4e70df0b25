package ingestion

import "errors"

var (
	// ErrPipelineClosed indicates the pipeline has been shut down.
	ErrPipelineClosed = errors.New("pipeline is closed")

	// ErrPipelineRunning indicates Run was called twice.
	ErrPipelineRunning = errors.New("pipeline is already running")

	// ErrUnknownStage indicates a stage name that does not exist.
	ErrUnknownStage = errors.New("unknown pipeline stage")
)
