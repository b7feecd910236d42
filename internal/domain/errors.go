// Package domain contains the core types and error taxonomy for the
// arXiv Pulse service.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrSourceUnavailable indicates that a paper source could not be
	// reached or returned an unparseable response. Callers treat it as
	// an empty result for one category, not as a fatal cycle error.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrPersistenceFatal indicates that a batch commit failed. The
	// whole batch is rolled back and the cycle ends early.
	ErrPersistenceFatal = errors.New("persistence failure")

	// ErrEnrichmentFailed indicates that the summarizer returned an
	// empty result or an error. The row stays a candidate for the
	// next enrichment cycle.
	ErrEnrichmentFailed = errors.New("enrichment failed")

	// ErrNotificationFailed indicates that the webhook rejected or
	// errored on a notification. Never retried within the cycle.
	ErrNotificationFailed = errors.New("notification failed")
)

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ExternalAPIError provides details about an external API error from a
// paper source, the summarizer endpoint, or the notification webhook.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
