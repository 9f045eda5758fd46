// Package errors provides coded domain errors shared by the data layer, the
// cache synchronizer and the HTTP API.
//
// Usage:
//
//	// In the data layer - reject before any remote call
//	if text == "" || color == "" {
//	    return errors.Validation("text and color are required for tags")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrTimeout) {
//	    // offer a retry
//	}
//
//	// Or inspect the code and backend status directly
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) && domainErr.Status == http.StatusUnauthorized {
//	    // session expired upstream
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeValidation         Code = "VALIDATION"
	CodeConflict           Code = "CONFLICT"
	CodeInternal           Code = "INTERNAL"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeRemote             Code = "REMOTE"
	CodeTimeout            Code = "TIMEOUT"
)

// HTTPStatus returns the HTTP status code the local API answers with for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeValidation:
		return http.StatusBadRequest
	case CodeRemote:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, a human-readable message, and optional details.
// Status carries the backend's HTTP status for failures that came over the wire.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
// Backend statuses in the 4xx range are passed through so the UI sees the same
// class of failure the backend reported.
func (e *Error) HTTPStatus() int {
	if e.Code == CodeRemote && e.Status >= 400 && e.Status < 500 {
		return e.Status
	}
	return e.Code.HTTPStatus()
}

// GetStatus lets the HTTP layer treat the error as a status error.
func (e *Error) GetStatus() int {
	return e.HTTPStatus()
}

// Retryable reports whether repeating the failed operation may succeed.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeTimeout:
		return true
	case CodeRemote:
		return e.Status == 0 || e.Status >= 500 || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Status,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Status,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict           = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrRemote             = &Error{Code: CodeRemote, Message: "backend request failed"}
	ErrTimeout            = &Error{Code: CodeTimeout, Message: "backend did not respond in time"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Message: msg}
}

// Remote creates an error for a failure reported by the backend.
// status is the HTTP status of the backend response, or 0 when none was received.
func Remote(status int, msg string) *Error {
	return &Error{Code: CodeRemote, Message: msg, Status: status}
}

// Timeout creates a timeout error wrapping the context error that expired.
func Timeout(msg string, cause error) *Error {
	return &Error{Code: CodeTimeout, Message: msg, cause: cause}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// Message returns the human-readable message of err, preferring the domain
// message over the full wrapped chain so the UI shows what the backend said.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// IsRetryable reports whether err is a domain error that may succeed on retry.
func IsRetryable(err error) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Retryable()
	}
	return false
}
