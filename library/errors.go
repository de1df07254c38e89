/*
errors.go - Centralized error types for the library domain

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify with errors.Is / errors.As or the helpers at the bottom.

ERROR CATEGORIES:
  1. NotFound         - student, item or record lookup found nothing
  2. MalformedRecord  - a date field is missing or unparseable
  3. WriteFailure     - the document store rejected or lost a write
  4. ValidationFailure - a constructor refused its input

PROPAGATION:
  MalformedRecord is contained per record: the engine reports an unknown
  due date and fine for that row and counts it, the rest of the view is
  unaffected. Lookup and write errors are returned whole to the caller.
  No retry happens here; retry policy belongs to the caller.

SEE ALSO:
  - engine/decode.go: counts skipped entities
  - engine/writer.go: wraps store failures in WriteError
*/
package library

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a student, item or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMalformedRecord is returned when a record's dates cannot be read.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrWriteFailed is returned when the document store write fails.
	ErrWriteFailed = errors.New("write failed")

	// ErrValidation is returned when a domain constructor rejects input.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyReturned is returned when settlement targets a record that
	// is already in its terminal Returned state.
	ErrAlreadyReturned = errors.New("record already returned")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the entity and field that failed.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(entity, field, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}

// WriteError wraps a failed store write with its target path.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

// Unwrap exposes both the category and the store's own error.
func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailed, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// or a request that conflicts with current state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAlreadyReturned) ||
		errors.Is(err, ErrMalformedRecord)
}

// IsWriteFailure returns true if the store failed to apply a write.
func IsWriteFailure(err error) bool {
	return errors.Is(err, ErrWriteFailed)
}
