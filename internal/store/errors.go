package store

import (
	"errors"
	"fmt"
)

// Error is a store-level failure with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches store errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// Sentinel errors.
var (
	ErrDuplicateKey = &Error{Code: "duplicate_key", Message: "unique index violated"}
	ErrUnsupported  = &Error{Code: "unsupported", Message: "unsupported query or update operator"}
	ErrInvalidDoc   = &Error{Code: "invalid_document", Message: "invalid document"}
	ErrClosed       = &Error{Code: "closed", Message: "store is closed"}
)
