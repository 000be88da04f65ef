package domain

import (
	"errors"
	"fmt"
)

// ExtractionFailureKind distinguishes why a browser login attempt failed
type ExtractionFailureKind string

// Extraction failure kinds
const (
	FailureFormNotFound  ExtractionFailureKind = "FormNotFound"
	FailureLoginRejected ExtractionFailureKind = "LoginRejected"
	FailureTokenNotFound ExtractionFailureKind = "TokenNotFound"
	FailureTimeout       ExtractionFailureKind = "Timeout"
)

// ExtractionError represents a failed browser login extraction
type ExtractionError struct {
	Kind  ExtractionFailureKind
	Cause error
}

func (e ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("token extraction failed (%s): %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("token extraction failed (%s)", e.Kind)
}

func (e ExtractionError) Unwrap() error {
	return e.Cause
}

// NewExtractionError creates a new extraction error
func NewExtractionError(kind ExtractionFailureKind, cause error) error {
	return ExtractionError{Kind: kind, Cause: cause}
}

// AsExtractionError extracts an ExtractionError from an error chain
func AsExtractionError(err error) (ExtractionError, bool) {
	var extractionErr ExtractionError
	ok := errors.As(err, &extractionErr)
	return extractionErr, ok
}

// IsExtractionRetryable reports whether re-running the extraction itself is
// worthwhile. Only timeouts qualify: wrong credentials or a missing form
// will not improve on a second run.
func IsExtractionRetryable(err error) bool {
	extractionErr, ok := AsExtractionError(err)
	return ok && extractionErr.Kind == FailureTimeout
}
