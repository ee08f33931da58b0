// Package errors provides structured error types for graphpatch.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP API and the library
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow the failure taxonomy of the editing engine:
//   - NOT_FOUND: a snap found nothing within tolerance (recovered locally)
//   - INVALID_EDGE: a manual edge would be a self-loop (recovered locally)
//   - LOAD_FAILURE: the base graph could not be fetched from any source (fatal to readiness)
//   - OVERRIDE_LOAD_FAILURE: override layers missing or unreadable (logged only)
//   - PERSISTENCE_*: saving overrides failed, split by network vs server cause
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidEdge, "end node same as start: %s", id)
//	if errors.Is(err, errors.ErrCodeInvalidEdge) {
//	    // Report to the user, no state changed
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeLoadFailure, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidEdge  Code = "INVALID_EDGE"
	ErrCodeInvalidMode  Code = "INVALID_MODE"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Resolution errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Loading errors
	ErrCodeLoadFailure         Code = "LOAD_FAILURE"
	ErrCodeOverrideLoadFailure Code = "OVERRIDE_LOAD_FAILURE"

	// Persistence errors
	ErrCodePersistenceNetwork Code = "PERSISTENCE_NETWORK"
	ErrCodePersistenceServer  Code = "PERSISTENCE_SERVER"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsPersistence reports whether err is a save failure of either kind.
func IsPersistence(err error) bool {
	code := GetCode(err)
	return code == ErrCodePersistenceNetwork || code == ErrCodePersistenceServer
}

// ServerError carries the status and message reported by a persistence
// endpoint that answered with a non-2xx response.
type ServerError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// Code returns the error code for this error type.
func (e *ServerError) Code() Code {
	return ErrCodePersistenceServer
}
