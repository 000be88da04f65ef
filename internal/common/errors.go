package common

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input parameter")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrNoToken indicates no usable token exists in the store
	ErrNoToken = errors.New("no valid token available")
)

// IsNotFound checks if err is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if err is or wraps ErrInvalidInput
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTimeout checks if err is or wraps ErrTimeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnavailable checks if err is or wraps ErrUnavailable
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsNoToken checks if err is or wraps ErrNoToken
func IsNoToken(err error) bool {
	return errors.Is(err, ErrNoToken)
}

// NotFoundError returns a wrapped not found error with context
func NotFoundError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// InvalidInputError returns a wrapped invalid input error with context
func InvalidInputError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// TimeoutError returns a wrapped timeout error with context
func TimeoutError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrTimeout)
}

// UnavailableError returns a wrapped unavailable error with context
func UnavailableError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnavailable)
}

// NoTokenError returns a wrapped no-token error with context
func NoTokenError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNoToken)
}

// ErrAuthRejected represents an API response that rejected the supplied token
type ErrAuthRejected struct {
	StatusCode int
	Reason     string
}

func (e ErrAuthRejected) Error() string {
	return fmt.Sprintf("authentication rejected (status %d): %s", e.StatusCode, e.Reason)
}

// NewAuthRejectedError creates a new auth rejected error
func NewAuthRejectedError(statusCode int, reason string) error {
	return ErrAuthRejected{StatusCode: statusCode, Reason: reason}
}

// ErrStorePersist represents a failure persisting a token that was already
// obtained. The in-memory token is still usable by the caller.
type ErrStorePersist struct {
	Path  string
	Cause error
}

func (e ErrStorePersist) Error() string {
	return fmt.Sprintf("failed to persist token to %s: %v", e.Path, e.Cause)
}

func (e ErrStorePersist) Unwrap() error {
	return e.Cause
}

// NewStorePersistError creates a new store persist error
func NewStorePersistError(path string, cause error) error {
	return ErrStorePersist{Path: path, Cause: cause}
}

// IsAuthRejectedError Error type checking helpers
func IsAuthRejectedError(err error) bool {
	var errAuthRejected ErrAuthRejected
	ok := errors.As(err, &errAuthRejected)
	return ok
}

func IsStorePersistError(err error) bool {
	var errStorePersist ErrStorePersist
	ok := errors.As(err, &errStorePersist)
	return ok
}
