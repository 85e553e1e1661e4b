// Package errors provides structured error types for beadring.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the engine, pipeline, and CLI
//   - Machine-readable error codes for programmatic handling
//   - Human-readable reasons for generation results
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Two classes of codes matter to callers of the generation pipeline:
//
//   - Recoverable per bead: [ErrCodeFetchFailed], [ErrCodeDecodeFailed].
//     The renderer substitutes a placeholder and records a warning.
//   - Fatal to the operation: [ErrCodeQueueDestroyed], [ErrCodeDegenerateLayout],
//     [ErrCodeCancelled]. These are returned to the caller.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDegenerateLayout, "bead %d: diameter must be positive", i)
//	if errors.Is(err, errors.ErrCodeDegenerateLayout) {
//	    // Handle invalid geometry
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetchFailed, origErr, "fetch %s", url)
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Geometry errors
	ErrCodeDegenerateLayout Code = "DEGENERATE_LAYOUT"

	// Asset errors
	ErrCodeFetchFailed  Code = "FETCH_FAILED"
	ErrCodeDecodeFailed Code = "DECODE_FAILED"
	ErrCodeNotFound     Code = "NOT_FOUND"

	// Network errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Lifecycle errors
	ErrCodeQueueDestroyed Code = "QUEUE_DESTROYED"
	ErrCodeCancelled      Code = "CANCELLED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// Context cancellation and deadline errors report [ErrCodeCancelled].
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeCancelled
	}
	return ""
}

// IsFatal reports whether err must abort the current generation.
// Fetch and decode failures are recoverable per bead; everything else is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch GetCode(err) {
	case ErrCodeFetchFailed, ErrCodeDecodeFailed:
		return false
	}
	return true
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	if GetCode(err) == ErrCodeCancelled {
		return "generation cancelled"
	}
	return err.Error()
}

// RateLimitedError provides additional information for rate-limited responses.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}
