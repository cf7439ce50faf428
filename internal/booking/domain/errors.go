package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job, user or assignment cannot be found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyAssigned is returned by the store when a second active assignment would be created
	ErrAlreadyAssigned = errors.New("job already has an active assignment")

	// ErrMalformedDuration is returned when a session time is not in H:M or H:M:S form
	ErrMalformedDuration = errors.New("malformed duration")
)

// ValidationError reports a missing or malformed field for the requested change.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError is a soft failure: double booking or a job taken by someone else.
// Reason is shown to the user as is.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// NewConflictError creates a new conflict error
func NewConflictError(reason string) error {
	return &ConflictError{Reason: reason}
}

// TransportError wraps a delivery failure of a push, SMS or email collaborator.
type TransportError struct {
	Channel string
	Err     error
}

func (e *TransportError) Error() string {
	return e.Channel + " transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error
func NewTransportError(channel string, err error) error {
	return &TransportError{Channel: channel, Err: err}
}

// NotFoundf wraps ErrNotFound with the entity description.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
