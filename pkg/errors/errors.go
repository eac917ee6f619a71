// Package errors provides structured error types for the storage planner.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library and CLI
//   - Machine-readable error codes for programmatic handling
//   - Separation of recoverable availability failures from planner bugs
//   - Error wrapping with context preservation
//
// # Error Families
//
// Every code belongs to one of two families:
//
//   - Dependency errors: an operation was refused because an external
//     capability (mdadm, lvm, cryptsetup, ...) is unavailable or a format
//     does not support the operation. These are recoverable - the caller
//     can install the tool, reset the availability cache, and replan.
//   - Structural errors: the requested mutation would corrupt the device
//     graph or the action queue (missing parent, cycle, conflicting
//     action). These are planner bugs; retrying without fixing the plan
//     is pointless.
//
// Use [IsDependency] and [IsStructural] to branch on the family.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeMissingParent, "parent %q not in tree", name)
//	if errors.Is(err, errors.ErrCodeMissingParent) {
//	    // Handle structural error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidSize, origErr, "bad size for %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Dependency/availability errors - recoverable by the caller.
	ErrCodeUnavailableDependency Code = "UNAVAILABLE_DEPENDENCY"
	ErrCodeUnsupportedFormat     Code = "UNSUPPORTED_FORMAT"
	ErrCodeNotControllable       Code = "NOT_CONTROLLABLE"
	ErrCodeNotResizable          Code = "NOT_RESIZABLE"
	ErrCodeNotFormattable        Code = "NOT_FORMATTABLE"
	ErrCodeNotDestroyable        Code = "NOT_DESTROYABLE"

	// Structural errors - the plan itself is wrong.
	ErrCodeInvalidName       Code = "INVALID_NAME"
	ErrCodeInvalidSize       Code = "INVALID_SIZE"
	ErrCodeInvalidDevice     Code = "INVALID_DEVICE"
	ErrCodeDuplicateDevice   Code = "DUPLICATE_DEVICE"
	ErrCodeUnknownDevice     Code = "UNKNOWN_DEVICE"
	ErrCodeMissingParent     Code = "MISSING_PARENT"
	ErrCodeHasChildren       Code = "HAS_CHILDREN"
	ErrCodeCycle             Code = "GRAPH_CYCLE"
	ErrCodeDeviceExists      Code = "DEVICE_EXISTS"
	ErrCodeDeviceMissing     Code = "DEVICE_MISSING"
	ErrCodeFormatExists      Code = "FORMAT_EXISTS"
	ErrCodeFormatMissing     Code = "FORMAT_MISSING"
	ErrCodeConflictingAction Code = "CONFLICTING_ACTION"

	// Internal errors.
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// dependencyCodes is the set of codes that mean "an external capability
// or format feature is missing", as opposed to a malformed plan.
var dependencyCodes = map[Code]bool{
	ErrCodeUnavailableDependency: true,
	ErrCodeUnsupportedFormat:     true,
	ErrCodeNotControllable:       true,
	ErrCodeNotResizable:          true,
	ErrCodeNotFormattable:        true,
	ErrCodeNotDestroyable:        true,
}

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

// IsDependency reports whether err is a dependency/availability error.
// These are recoverable: the caller may make the capability available
// and plan again.
func IsDependency(err error) bool {
	return dependencyCodes[GetCode(err)]
}

// IsStructural reports whether err is a structural planning error.
// These indicate the plan violates a graph or ordering invariant and
// must be fixed by the caller, not retried.
func IsStructural(err error) bool {
	code := GetCode(err)
	return code != "" && code != ErrCodeInternal && !dependencyCodes[code]
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
