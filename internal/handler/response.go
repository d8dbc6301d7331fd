package handler

// RESPONSE HELPERS:
// Every handler writes through writeJSON and writeError so the API has one
// success shape per route and exactly one error shape:
//
//	{"error": "Invalid email address.", "code": "validation_error"}
//
// "error" is always safe to show an end user. "code" is for programs.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/picketly/api/internal/apperror"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSON sends data with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written; anything set
// after the first Write is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status.
//
// ERROR MAPPING:
//
//	ErrValidation   → 400 validation_error
//	ErrInvalidToken → 400 invalid_token
//	ErrUnauthorized → 401 unauthorized
//	ErrNotFound     → 404 not_found
//	ErrRateLimited  → 429 rate_limited
//	ErrConfig       → 500 config_error
//	ErrInternal     → 500 internal_error
//
// errors.As walks the wrap chain, so a service may return
// fmt.Errorf("...: %w", apperror.Internal(...)) and the client still sees
// only the AppError's Message.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code := classify(err)
		writeJSON(w, status, ErrorResponse{
			Error: appErr.Message,
			Code:  code,
		})
		return
	}

	// Unknown error. Never echo it: it may contain SQL or file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: "An internal error occurred",
		Code:  "internal_error",
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrInvalidToken):
		return http.StatusBadRequest, "invalid_token"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, apperror.ErrConfig):
		return http.StatusInternalServerError, "config_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
