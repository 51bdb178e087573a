package workflow

import (
	"errors"
	"fmt"
)

// Sentinel markers for error classification. Use errors.Is against these.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence error")
)

// ValidationError rejects an operation before any state changes. Field names
// the offending input so callers can attach inline messages.
type ValidationError struct {
	Field  string
	Reason string
	kind   error
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, kind: ErrValidation}
}

// NewFieldError builds a validation error for a named input field. Callers
// outside the engine use it to reject payloads before invoking an operation.
func NewFieldError(field, reason string) *ValidationError {
	return newValidationError(field, reason)
}

func newNotFoundError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, kind: ErrNotFound}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is match the classification sentinel.
func (e *ValidationError) Is(target error) bool {
	return target == e.kind
}

// ErrorKind returns the classification used for transport status mapping.
func (e *ValidationError) ErrorKind() string {
	if e.kind == ErrNotFound {
		return "not_found"
	}
	return "validation"
}

// PersistenceError wraps a store failure. The failed operation is idempotent
// when retried with the same inputs, so callers may retry the same call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the persistence sentinel.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
