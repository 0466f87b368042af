// Package http holds the shared HTTP plumbing for reviewer backends: typed
// errors and retry with exponential backoff.
package http

import "fmt"

// ErrorType represents the category of backend error that occurred.
type ErrorType int

const (
	ErrTypeAuthentication ErrorType = iota
	ErrTypeRateLimit
	ErrTypeServiceUnavailable
	ErrTypeInvalidRequest
	ErrTypeTimeout
	ErrTypeUnknown
)

// String returns a human-readable description of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeAuthentication:
		return "authentication error"
	case ErrTypeRateLimit:
		return "rate limit exceeded"
	case ErrTypeServiceUnavailable:
		return "service unavailable"
	case ErrTypeInvalidRequest:
		return "invalid request"
	case ErrTypeTimeout:
		return "timeout"
	default:
		return "unknown error"
	}
}

// Error represents a reviewer backend error with additional context.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Backend    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s (status: %d)", e.Backend, e.Type.String(), e.Message, e.StatusCode)
}

// Is matches errors of the same type for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewAuthenticationError creates a new authentication error.
func NewAuthenticationError(backend, message string) *Error {
	return &Error{Type: ErrTypeAuthentication, Message: message, StatusCode: 401, Retryable: false, Backend: backend}
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(backend, message string) *Error {
	return &Error{Type: ErrTypeRateLimit, Message: message, StatusCode: 429, Retryable: true, Backend: backend}
}

// NewServiceUnavailableError creates a new service unavailable error.
func NewServiceUnavailableError(backend, message string) *Error {
	return &Error{Type: ErrTypeServiceUnavailable, Message: message, StatusCode: 503, Retryable: true, Backend: backend}
}

// NewInvalidRequestError creates a new invalid request error.
func NewInvalidRequestError(backend, message string) *Error {
	return &Error{Type: ErrTypeInvalidRequest, Message: message, StatusCode: 400, Retryable: false, Backend: backend}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(backend, message string) *Error {
	return &Error{Type: ErrTypeTimeout, Message: message, StatusCode: 0, Retryable: true, Backend: backend}
}
