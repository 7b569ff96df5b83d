package helpers

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type TrackerError struct {
	Message string
	Cause   error
}

func (e *TrackerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TrackerError) Unwrap() error {
	return e.Cause
}

// Helper to define distinct error types for type assertions if needed
type ConfigurationError struct{ TrackerError }
type NetworkError struct{ TrackerError }
type StorageError struct{ TrackerError }

// -----------------------------------------------------------------------------

// AuthenticationError carries the HTTP status and response body of a rejected
// login or an exhausted re-authentication attempt.
type AuthenticationError struct {
	TrackerError
	Status int
	Body   string
}

func NewAuthenticationError(message string, status int, body string) *AuthenticationError {
	return &AuthenticationError{
		TrackerError: TrackerError{Message: fmt.Sprintf("%s (status %d): %s", message, status, body)},
		Status:       status,
		Body:         body,
	}
}
