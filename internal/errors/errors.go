// Package errors provides standardized error codes for the wakesentry host.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (interval, wake, storage, server, auth)
//   - error: The specific error type within that domain
//
// These codes are stable and can be used by observer clients for programmatic
// error handling. Human-readable messages are provided alongside codes.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
// These are stable identifiers that observer clients can rely on.
const (
	// Interval domain - keep-awake duration catalog errors
	CodeIntervalInvalid = "interval.invalid" // Value is not a catalog member

	// Wake domain - assertion process lifecycle errors
	CodeWakeSpawnFailed            = "wake.spawn_failed"            // Assertion process failed to launch
	CodeWakeUnsupportedEnvironment = "wake.unsupported_environment" // No sleep inhibitor available on this host
	CodeWakeReleaseFailed          = "wake.release_failed"          // Assertion process teardown failed
	CodeWakeClosed                 = "wake.closed"                  // Supervisor is shut down

	// Storage domain - database and persistence errors
	CodeStorageOpenFailed  = "storage.open_failed"  // Database open failed
	CodeStorageQueryFailed = "storage.query_failed" // Database query failed
	CodeStorageSaveFailed  = "storage.save_failed"  // Failed to save data

	// Server domain - HTTP and WebSocket errors
	CodeServerUpgradeFailed  = "server.upgrade_failed"  // WebSocket upgrade failed
	CodeServerInvalidMessage = "server.invalid_message" // Malformed or invalid request
	CodeServerRateLimited    = "server.rate_limited"    // Too many mutation requests

	// Auth domain - control token errors
	CodeAuthRequired = "auth.required" // Bearer token required
	CodeAuthInvalid  = "auth.invalid"  // Invalid control token

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal host error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "wake.spawn_failed")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// If the error is a CodedError, returns its code.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to client responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// InvalidInterval creates an "interval.invalid" error.
func InvalidInterval(seconds int) *CodedError {
	return New(CodeIntervalInvalid, fmt.Sprintf("%d seconds is not an allowed keep-awake interval", seconds))
}

// SpawnFailed creates a "wake.spawn_failed" error.
func SpawnFailed(cause error) *CodedError {
	return Wrap(CodeWakeSpawnFailed, "failed to start assertion process", cause)
}

// UnsupportedEnvironment creates a "wake.unsupported_environment" error.
func UnsupportedEnvironment(message string) *CodedError {
	return New(CodeWakeUnsupportedEnvironment, message)
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}
