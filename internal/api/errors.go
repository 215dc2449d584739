package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/bac-dam-1991/shopping-list/internal/errors"
	"github.com/bac-dam-1991/shopping-list/internal/validation"
)

// APIError is a custom error type that implements huma.StatusError.
// Its body is the message alone, encoded as a JSON string.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    domainerrors.Code
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// MarshalJSON renders the error as a bare JSON string.
func (e *APIError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Message)
}

// Schema describes the error body in the OpenAPI document.
func (APIError) Schema(_ huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:        huma.TypeString,
		Description: "Human-readable error message",
		Examples:    []any{"Shopping list does not exist."},
	}
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this before registering routes. Failures that are not domain errors
// are logged with their detail and reported as an unknown error.
func RegisterErrorHandler(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				if domainErr.HTTPStatus() >= http.StatusInternalServerError {
					logger.Error("Unhandled error", "error", err.Error())
				}
				return &APIError{
					status:  domainErr.HTTPStatus(),
					Code:    domainErr.Code,
					Message: domainErr.PublicMessage(),
				}
			}
		}

		if malformedBody(status, errs) {
			return &APIError{
				status:  domainerrors.CodeValidation.HTTPStatus(),
				Code:    domainerrors.CodeValidation,
				Message: validation.MalformedBodyMessage,
			}
		}

		if status >= http.StatusInternalServerError {
			for _, err := range errs {
				if err != nil {
					logger.Error("Unhandled error", "error", err.Error(), "status", status)
				}
			}
			return &APIError{
				status:  status,
				Code:    domainerrors.CodeUnknown,
				Message: domainerrors.UnknownMessage,
			}
		}

		return &APIError{
			status:  status,
			Code:    statusToCode(status),
			Message: message,
		}
	}
}

// malformedBody reports whether huma rejected the request because its body
// could not be parsed.
func malformedBody(status int, errs []error) bool {
	if status != http.StatusBadRequest && status != http.StatusUnprocessableEntity {
		return false
	}
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) && detail.Location == "body" {
			return true
		}
	}
	return false
}

// statusToCode maps HTTP status codes raised by huma itself to our codes.
func statusToCode(status int) domainerrors.Code {
	switch status {
	case http.StatusNotFound:
		return domainerrors.CodeNotFound
	case http.StatusUnauthorized:
		return domainerrors.CodeUnauthorized
	case http.StatusTooManyRequests:
		return domainerrors.CodeRateLimited
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return domainerrors.CodeValidation
	default:
		return domainerrors.CodeUnknown
	}
}
