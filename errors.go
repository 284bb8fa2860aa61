package inkwell

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error type constants for classification and matching
const (
	// ErrorTypeAll acts as a wildcard that matches any error except fatal errors
	ErrorTypeAll = "all"

	// ErrorTypeTaskFailed matches any error except timeouts and fatal errors.
	// Per-task research failures and discarded diagram attempts fall here;
	// they are absorbed at the component boundary and never escalate.
	ErrorTypeTaskFailed = "task_failed"

	// ErrorTypeTimeout matches a timeout or context cancellation
	ErrorTypeTimeout = "timeout"

	// ErrorTypeFatal marks an unrecoverable stage failure. Unknown errors
	// default to task_failed so components stay free to absorb them; only
	// errors that must terminate the thread carry this type.
	ErrorTypeFatal = "fatal_error"
)

// ErrThreadActive is returned by CheckpointStore.Acquire when another
// execution already holds the live state for the thread.
var ErrThreadActive = errors.New("thread already has an execution in flight")

// ErrThreadNotFound is returned when no checkpoint exists for a thread id.
var ErrThreadNotFound = errors.New("thread not found")

// WorkflowError represents a structured error with classification.
// It supports Go's error wrapping patterns with Unwrap() method.
type WorkflowError struct {
	Type    string      `json:"type"`
	Cause   string      `json:"cause"`
	Details interface{} `json:"details,omitempty"`
	Wrapped error       `json:"-"`
}

// Error implements the error interface
func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

// Unwrap implements the error unwrapping interface for errors.Is and errors.As
func (e *WorkflowError) Unwrap() error {
	return e.Wrapped
}

// NewFatalError wraps err as a fatal, thread-terminating error.
func NewFatalError(err error) *WorkflowError {
	return &WorkflowError{Type: ErrorTypeFatal, Cause: err.Error(), Wrapped: err}
}

// ClassifyError attempts to classify a regular error into a WorkflowError
func ClassifyError(err error) *WorkflowError {
	var workflowError *WorkflowError
	if errors.As(err, &workflowError) {
		return workflowError
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &WorkflowError{
			Type:    ErrorTypeTimeout,
			Cause:   err.Error(),
			Wrapped: err,
		}
	}
	return &WorkflowError{
		Type:    ErrorTypeTaskFailed,
		Cause:   err.Error(),
		Wrapped: err,
	}
}

// MatchesErrorType checks if an error matches a specified error type pattern
func MatchesErrorType(err error, errorType string) bool {
	wErr := ClassifyError(err)
	// Fatal errors are only matched by the ErrorTypeFatal pattern
	if wErr.Type == ErrorTypeFatal {
		return errorType == ErrorTypeFatal
	}
	switch errorType {
	case ErrorTypeAll:
		return true
	case ErrorTypeTaskFailed:
		return wErr.Type != ErrorTypeTimeout
	default:
		return wErr.Type == errorType
	}
}

// IsFatal reports whether the error should terminate the thread rather than
// be absorbed at a component boundary.
func IsFatal(err error) bool {
	return MatchesErrorType(err, ErrorTypeFatal)
}
