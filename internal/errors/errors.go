// Package errors provides domain-specific error types and sentinel errors
// for interaction routing, pagination and outbound request scheduling.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnknownCommand indicates a command name with no registered descriptor.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrPermissionDenied indicates the invoking member lacks admin rights.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnroutableComponent indicates a component id whose kind has no owner.
	// Stale buttons on old messages end up here after a restart.
	ErrUnroutableComponent = errors.New("unroutable component")

	// ErrSessionNotFound indicates a navigation event for a session that is
	// gone (expired, superseded or never existed). It matches ErrUnroutableComponent.
	ErrSessionNotFound = fmt.Errorf("%w: pagination session not found", ErrUnroutableComponent)

	// ErrForbidden indicates a user navigating a session restricted to someone else.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimitExhausted indicates a request was throttled more times than allowed.
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")

	// ErrUpstreamFailure indicates a non-throttling failure of an external service.
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrRateLimitExceeded indicates a local rate limit rejected the request.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// UpstreamError represents a failed call to an external service with context.
// It always matches ErrUpstreamFailure.
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (service=%s, status=%d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream error (service=%s): %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{ErrUpstreamFailure, e.Err}
}

// NewUpstreamError creates a new upstream error.
func NewUpstreamError(service string, statusCode int, err error) *UpstreamError {
	return &UpstreamError{
		Service:    service,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NeedsAttention reports whether err belongs to the classes an operator should
// look at. Routing and permission errors are expected traffic.
func NeedsAttention(err error) bool {
	return errors.Is(err, ErrRateLimitExhausted) || errors.Is(err, ErrUpstreamFailure)
}
