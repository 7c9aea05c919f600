package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions. Components never let a
// generic panic or untyped error cross their boundary; callers branch on
// these with errors.Is.
var (
	// ErrNotFound indicates that a requested document does not exist
	// at the source that was asked for it.
	ErrNotFound = errors.New("not found")

	// ErrNotSupported indicates that a source cannot perform the
	// requested operation (e.g. arXiv has no citation counts).
	ErrNotSupported = errors.New("not supported")

	// ErrRateLimited indicates that a source's rate limit was hit and
	// the retry budget is exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstream indicates a source API failure after retries.
	ErrUpstream = errors.New("upstream error")

	// ErrTimeout indicates that a source did not answer in time.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidInput indicates that caller input is malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingCredential indicates that a requested source cannot be
	// used because its API key or contact email is not configured.
	ErrMissingCredential = errors.New("missing credential")

	// ErrAllSourcesFailed indicates that every requested source failed.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// ValidationError reports a caller input problem for a specific field.
// Validation failures are never retried and always map to an invalid
// params response.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a missing document.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about an exhausted rate-limit budget.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about a source API failure.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap exposes the wrapped cause, when there is one, so callers can
// still reach transport-level errors with errors.Is and errors.As.
func (e *ExternalAPIError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrUpstream
}

// Is makes errors.Is(err, ErrUpstream) hold for every external API
// failure regardless of the wrapped cause.
func (e *ExternalAPIError) Is(target error) bool {
	return target == ErrUpstream
}

// MissingCredentialError identifies the source whose credential is absent.
// The failure is scoped to that source, never to the whole request.
type MissingCredentialError struct {
	Source     string
	Credential string
}

// Error implements the error interface.
func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("source %s requires %s", e.Source, e.Credential)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *MissingCredentialError) Unwrap() error {
	return ErrMissingCredential
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Source: source, RetryAfter: retryAfter}
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

// NewMissingCredentialError creates a new MissingCredentialError.
func NewMissingCredentialError(source, credential string) *MissingCredentialError {
	return &MissingCredentialError{Source: source, Credential: credential}
}
