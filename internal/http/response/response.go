// Package response writes JSON responses for handlers and middleware that
// run outside the API framework. Error bodies are a bare JSON string.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/bac-dam-1991/shopping-list/internal/errors"
)

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Error writes message as a JSON string with the given status code.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	JSON(w, status, message, logger)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, logger *slog.Logger) {
	Error(w, http.StatusUnauthorized, domainerrors.ErrUnauthorized.Message, logger)
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, domainerrors.ErrRateLimited.Message, logger)
}

// HandleError writes the response for err. Domain errors use their status
// and public message; anything else is an unknown 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		if domainErr.HTTPStatus() >= http.StatusInternalServerError && logger != nil {
			logger.Error("Unhandled error", "error", err)
		}
		Error(w, domainErr.HTTPStatus(), domainErr.PublicMessage(), logger)
		return
	}

	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	Error(w, http.StatusInternalServerError, domainerrors.UnknownMessage, logger)
}
