package handler

// RESPONSE HELPERS:
// The JSON API answers with the same two helpers everywhere:
//
//	writeJSON(w, http.StatusOK, data)
//	writeError(w, err)
//
// Every error body has one shape, so clients can always read it the same way:
//
//	{"error": "not_found", "message": "post not found with id 7"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/flatblog/internal/apperror"
)

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

// writeJSON sets the headers and status before the body; once Encode writes,
// header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorKinds maps each apperror sentinel to its status and error name.
// Order matters only in that the first match wins.
var errorKinds = []struct {
	sentinel error
	status   int
	name     string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
}

// writeError translates a service error into an HTTP response.
//
// errors.As finds the *AppError anywhere in a %w chain, so a service may
// wrap it with context and the mapping still works. Anything that is not an
// AppError is an internal failure: its text may hold file paths or SQL and
// is never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, kind := range errorKinds {
			if errors.Is(err, kind.sentinel) {
				writeJSON(w, kind.status, ErrorResponse{
					Error:   kind.name,
					Message: appErr.Message,
				})
				return
			}
		}
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
