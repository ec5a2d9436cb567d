package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is. Adapters map them to HTTP statuses and
// CLI messages; nothing in this package knows about either.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")

	// ErrFormat marks an import document or remote payload with the wrong shape.
	ErrFormat = errors.New("invalid format")

	// ErrTransientNetwork marks a failed round trip to the posts service. It is
	// logged and left for the next scheduled sync; nothing retries it here.
	ErrTransientNetwork = errors.New("transient network failure")
)

// NotFoundError names a missing store key or session value.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}

	return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError rejects a quote or request field.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}

	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue also records the rejected value.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// FormatError says which payload (Source) was malformed and how.
type FormatError struct {
	Source string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Source == "" {
		return "invalid format: " + e.Reason
	}

	return fmt.Sprintf("invalid %s format: %s", e.Source, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

func NewFormatError(source, reason string) error {
	return &FormatError{Source: source, Reason: reason}
}

// TransientNetworkError wraps the transport failure behind a remote operation.
// It matches ErrTransientNetwork and still unwraps to Cause.
type TransientNetworkError struct {
	Service   string
	Operation string
	Cause     error
}

func (e *TransientNetworkError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s failed", e.Service, e.Operation)
	}

	return fmt.Sprintf("%s: %s failed: %v", e.Service, e.Operation, e.Cause)
}

func (e *TransientNetworkError) Is(target error) bool { return target == ErrTransientNetwork }

func (e *TransientNetworkError) Unwrap() error { return e.Cause }

func NewTransientNetworkError(service, operation string, cause error) error {
	return &TransientNetworkError{Service: service, Operation: operation, Cause: cause}
}

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool       { return errors.Is(err, ErrValidation) }
func IsFormat(err error) bool           { return errors.Is(err, ErrFormat) }
func IsTransientNetwork(err error) bool { return errors.Is(err, ErrTransientNetwork) }
