package utils

import (
	"errors"
	"fmt"
)

// ErrRouteNotFound indicates the origin/destination pair does not resolve to
// an active route. It is one of the two hard failures of the forecast
// pipeline; everything else degrades gracefully.
var ErrRouteNotFound = errors.New("route not found")

// ValidationError represents an error occurring during request validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
