// Package errors defines custom error types for the model router
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents different types of errors
type ErrorCode string

const (
	// Registry errors
	ErrDuplicateProvider ErrorCode = "DUPLICATE_PROVIDER"
	ErrProviderNotFound  ErrorCode = "PROVIDER_NOT_FOUND"

	// Request validation errors
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrBatchTooLarge  ErrorCode = "BATCH_TOO_LARGE"

	// Character errors
	ErrCharacterNotFound ErrorCode = "CHARACTER_NOT_FOUND"

	// Admission errors
	ErrRateLimited ErrorCode = "RATE_LIMITED"

	// Routing errors
	ErrNoHealthyProvider     ErrorCode = "NO_HEALTHY_PROVIDER"
	ErrAllProvidersExhausted ErrorCode = "ALL_PROVIDERS_EXHAUSTED"

	// Upstream transport errors (always recovered into fallback,
	// never surfaced raw)
	ErrUpstreamTimeout  ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamProtocol ErrorCode = "UPSTREAM_PROTOCOL"

	// Auth errors
	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrInvalidAPIKey ErrorCode = "INVALID_API_KEY"

	// Internal errors
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

// RouterError represents a router-specific error
type RouterError struct {
	Code           ErrorCode `json:"code"`
	Message        string    `json:"message"`
	Details        string    `json:"details,omitempty"`
	HTTPStatusCode int       `json:"-"`
	cause          error
}

// Error implements the error interface
func (e *RouterError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any
func (e *RouterError) Unwrap() error {
	return e.cause
}

// New creates a new router error
func New(code ErrorCode, message string) *RouterError {
	return &RouterError{
		Code:           code,
		Message:        message,
		HTTPStatusCode: httpStatus(code),
	}
}

// NewWithDetails creates a new router error with details
func NewWithDetails(code ErrorCode, message, details string) *RouterError {
	return &RouterError{
		Code:           code,
		Message:        message,
		Details:        details,
		HTTPStatusCode: httpStatus(code),
	}
}

// Wrap creates a router error that wraps an underlying cause
func Wrap(code ErrorCode, message string, cause error) *RouterError {
	e := New(code, message)
	if cause != nil {
		e.Details = cause.Error()
		e.cause = cause
	}
	return e
}

// httpStatus maps error codes to HTTP status codes
func httpStatus(code ErrorCode) int {
	switch code {
	case ErrUnauthorized, ErrInvalidAPIKey:
		return http.StatusUnauthorized
	case ErrInvalidRequest, ErrBatchTooLarge:
		return http.StatusBadRequest
	case ErrProviderNotFound, ErrCharacterNotFound:
		return http.StatusNotFound
	case ErrDuplicateProvider:
		return http.StatusConflict
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrNoHealthyProvider, ErrAllProvidersExhausted:
		return http.StatusServiceUnavailable
	case ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case ErrUpstreamProtocol, ErrInternalServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Attempt records one failed dispatch attempt within a fallback chain.
type Attempt struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

// ExhaustionError is returned when every provider in the fallback chain
// failed. It carries the ordered attempt list so callers see which
// providers were tried and why each failed.
type ExhaustionError struct {
	Attempts []Attempt `json:"attempts"`
}

// Error implements the error interface
func (e *ExhaustionError) Error() string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Provider
	}
	return fmt.Sprintf("%s: all providers exhausted after %d attempts (%s)",
		ErrAllProvidersExhausted, len(e.Attempts), strings.Join(names, ", "))
}

// LastReason returns the failure reason of the final attempt.
func (e *ExhaustionError) LastReason() string {
	if len(e.Attempts) == 0 {
		return ""
	}
	return e.Attempts[len(e.Attempts)-1].Reason
}

// Common error instances
var (
	ErrAuthenticationRequired = New(ErrUnauthorized, "Authentication required")
	ErrTooManyRequests        = New(ErrRateLimited, "Rate limit exceeded, try again later")
	ErrNoProviderAvailable    = New(ErrNoHealthyProvider, "No healthy provider available")
)
