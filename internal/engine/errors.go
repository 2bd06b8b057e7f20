package engine

import "errors"

var (
	// ErrUnknownExecution is returned when an id was never registered.
	ErrUnknownExecution = errors.New("unknown execution")

	// ErrDuplicateID is returned when a submission reuses an execution id.
	ErrDuplicateID = errors.New("execution id already in use")

	// ErrIllegalTransition is returned when a status change is not allowed,
	// most commonly because the execution is already terminal.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrMissingExecutionID is returned when a submission has no id.
	ErrMissingExecutionID = errors.New("missing executionId")

	// ErrShuttingDown is returned for submissions after Shutdown began.
	ErrShuttingDown = errors.New("engine is shutting down")
)
