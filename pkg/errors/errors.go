// Package errors provides structured error types for the rowkit engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the engine core and its hosts
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Configuration and input validation failures
//   - DUPLICATE_* / UNKNOWN_*: Feature graph shape errors
//   - MISSING_*: Absent collaborators required by a feature
//   - SOURCE_*: Data-source failures surfaced as state
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDuplicateFeature, "feature %q already registered", id)
//	if errors.Is(err, errors.ErrCodeDuplicateFeature) {
//	    // Handle registration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeSource, origErr, "load from %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Feature graph configuration errors (compile-time, fatal)
	ErrCodeDuplicateFeature Code = "DUPLICATE_FEATURE"
	ErrCodeRegistrySealed   Code = "REGISTRY_SEALED"
	ErrCodeAlreadyCompiled  Code = "ALREADY_COMPILED"
	ErrCodeDependencyCycle  Code = "DEPENDENCY_CYCLE"
	ErrCodeUnknownFeature   Code = "UNKNOWN_FEATURE"
	ErrCodeInvalidFeature   Code = "INVALID_FEATURE"
	ErrCodeMissingRowIDKey  Code = "MISSING_ROW_ID_KEY"

	// Runtime configuration errors (fatal on first use)
	ErrCodeMissingCoordinator Code = "MISSING_COORDINATOR"
	ErrCodeMissingHandler     Code = "MISSING_HANDLER"
	ErrCodeModalActive        Code = "MODAL_ACTIVE"
	ErrCodeInvalidConfig      Code = "INVALID_CONFIG"

	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidView  Code = "INVALID_VIEW"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeSource   Code = "SOURCE_ERROR"

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
