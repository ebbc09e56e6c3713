// Package domain defines error types for membership sync operations.
package domain

import "fmt"

// SetupError is a fatal pre-batch failure: unreadable input, zero valid rows,
// unwritable output directory, or a missing directory-service capability.
// It aborts the run before any mutation is attempted.
type SetupError struct {
	Stage   string // The setup stage that failed (e.g., "ingest", "output-dir")
	Message string // Human-readable error message
	Cause   error  // Underlying error
}

func (e *SetupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("setup failed during %s: %s (%v)", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("setup failed during %s: %s", e.Stage, e.Message)
}

func (e *SetupError) Unwrap() error {
	return e.Cause
}

// RowError is a non-fatal failure while processing a single request. It is
// always caught and converted into an OperationRecord; it never aborts the batch.
type RowError struct {
	Request MembershipRequest
	Message string
	Cause   error
}

func (e *RowError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("row %s -> %s failed: %s (%v)", e.Request.SourceIdentity(), e.Request.TargetIdentity(), e.Message, e.Cause)
	}
	return fmt.Sprintf("row %s -> %s failed: %s", e.Request.SourceIdentity(), e.Request.TargetIdentity(), e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Cause
}

// PersistenceError indicates the audit log could not be written to its
// configured location. It triggers the fallback log path and never changes
// the batch verdict.
type PersistenceError struct {
	Path  string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist audit log to %s: %v", e.Path, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// NotFoundError indicates a user, group, or domain controller was not found.
type NotFoundError struct {
	Type       string // "user", "group", or "domain controller"
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Type, e.Identifier)
}

// ValidationError indicates input validation failed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// NewSetupError creates a new SetupError
func NewSetupError(stage, message string, cause error) *SetupError {
	return &SetupError{
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// NewRowError creates a new RowError
func NewRowError(req MembershipRequest, message string, cause error) *RowError {
	return &RowError{
		Request: req,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(typ, identifier string) *NotFoundError {
	return &NotFoundError{
		Type:       typ,
		Identifier: identifier,
	}
}
