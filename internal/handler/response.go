package handler

// RESPONSE HELPERS:
// Every endpoint answers with the same envelope so the frontend can
// check one field:
//
//   success: {"success": true, ...payload}
//   failure: {"success": false, "error": "human-readable message"}
//
// Handlers never touch status codes for domain failures — they hand the
// error to writeError, which maps the apperror sentinel to HTTP:
//
//   ErrValidation   → 400
//   ErrUnauthorized → 401
//   ErrForbidden    → 403
//   ErrNotFound     → 404
//   ErrConflict     → 409
//   anything else   → 500 with a generic message
//
// WHY MAP HERE AND NOT IN THE SERVICE?
// The service layer should not know about HTTP status codes. It returns
// domain errors; this file is the single place they become HTTP.
//
// errors.Is() walks the wrap chain (service errors are usually
// fmt.Errorf("...: %w", apperror.X)), so wrapping never breaks mapping.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/crypto-academy/internal/apperror"
)

// ErrorResponse is the failure envelope shared by every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"` // always false here
	Error   string `json:"error"`
}

// writeJSON sends a JSON response with the given status code.
// Headers must be set before WriteHeader, and WriteHeader before the
// body — once Encode writes, the headers are gone.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends the
// failure envelope.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}
		writeJSON(w, status, ErrorResponse{Error: appErr.Message})
		return
	}

	// Unknown error — never leak internals (SQL, file paths) to clients.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: "an internal error occurred",
	})
}
