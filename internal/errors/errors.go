// Package errors defines the closed set of failure kinds the shopping list
// API reports, and the HTTP status each kind maps to.
//
// Usage:
//
//	// In services - return typed errors
//	if len(existing) > 0 {
//	    return nil, errors.Duplication("Shopping list name already exists")
//	}
//
//	// At the HTTP boundary - match by kind
//	if errors.Is(err, errors.ErrNotFound) {
//	    ...
//	}
//
//	// Or switch on the code
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    status := domainErr.HTTPStatus()
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// Code identifies the kind of a failure.
type Code string

// Error codes surfaced by the API.
const (
	CodeValidation    Code = "VALIDATION"
	CodeDuplication   Code = "DUPLICATION"
	CodeNotFound      Code = "NOT_FOUND"
	CodeUpdateFailure Code = "UPDATE_FAILURE"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeUnknown       Code = "UNKNOWN"
)

// UnknownMessage is the only message an unknown failure ever exposes.
const UnknownMessage = "An unknown error has occurred."

// Default messages used when a caller does not supply one.
const (
	DefaultDuplicationMessage   = "Resource already exists."
	DefaultNotFoundMessage      = "Resource does not exist."
	DefaultUpdateFailureMessage = "Unable to update document."
)

// statusByCode is the kind-to-status table. Codes missing from it are 500.
//
//nolint:gochecknoglobals // Static lookup table
var statusByCode = map[Code]int{
	CodeValidation:    http.StatusConflict,
	CodeDuplication:   http.StatusConflict,
	CodeNotFound:      http.StatusNotFound,
	CodeUpdateFailure: http.StatusBadRequest,
	CodeUnauthorized:  http.StatusUnauthorized,
	CodeRateLimited:   http.StatusTooManyRequests,
}

// HTTPStatus returns the HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
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

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// PublicMessage is the message safe to show a client. Unknown failures never
// leak their text.
func (e *Error) PublicMessage() string {
	if e.HTTPStatus() >= http.StatusInternalServerError {
		return UnknownMessage
	}
	return e.Message
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrValidation    = &Error{Code: CodeValidation, Message: "validation error"}
	ErrDuplication   = &Error{Code: CodeDuplication, Message: DefaultDuplicationMessage}
	ErrNotFound      = &Error{Code: CodeNotFound, Message: DefaultNotFoundMessage}
	ErrUpdateFailure = &Error{Code: CodeUpdateFailure, Message: DefaultUpdateFailureMessage}
	ErrUnauthorized  = &Error{Code: CodeUnauthorized, Message: "Authentication required"}
	ErrRateLimited   = &Error{Code: CodeRateLimited, Message: "Too many requests. Please try again later."}
	ErrUnknown       = &Error{Code: CodeUnknown, Message: UnknownMessage}
)

func newError(code Code, msg, fallback string) *Error {
	if msg == "" {
		msg = fallback
	}
	return &Error{Code: code, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Duplication creates a duplication error. An empty message uses the default.
func Duplication(msg string) *Error {
	return newError(CodeDuplication, msg, DefaultDuplicationMessage)
}

// NotFound creates a not found error. An empty message uses the default.
func NotFound(msg string) *Error {
	return newError(CodeNotFound, msg, DefaultNotFoundMessage)
}

// UpdateFailure creates an update failure error. An empty message uses the default.
func UpdateFailure(msg string) *Error {
	return newError(CodeUpdateFailure, msg, DefaultUpdateFailureMessage)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return newError(CodeUnauthorized, msg, ErrUnauthorized.Message)
}

// Unknown wraps an unexpected failure.
func Unknown(err error) *Error {
	return &Error{Code: CodeUnknown, Message: UnknownMessage, cause: err}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
