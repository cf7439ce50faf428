package domain

import "errors"

var (
	// ErrInvalidCommand is returned when a command message is malformed
	ErrInvalidCommand = errors.New("invalid command")

	// ErrUnknownCommand is returned for a command type the worker does not handle
	ErrUnknownCommand = errors.New("unknown command")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
