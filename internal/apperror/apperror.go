// Package apperror defines the domain error taxonomy shared by the service
// and handler layers.
//
// Services return *AppError values that wrap one of the sentinels below.
// Handlers map the sentinel to an HTTP status code and send Message to the
// client. Message is always safe to show; internal detail (SQL, driver errors)
// is logged server-side and never placed in an AppError.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrRateLimited  = errors.New("rate limited")
	ErrConfig       = errors.New("configuration error")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

type AppError struct {
	Err     error  // sentinel used for classification
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// RateLimited is returned when an abuse limit rejects a request.
// HTTP handlers map this to 429 Too Many Requests.
func RateLimited(message string) *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: message,
	}
}

// ConfigMissing reports a required setting that is absent at the time an
// operation runs. It maps to 500 and names the setting, which is operator
// facing information rather than request input.
func ConfigMissing(setting, purpose string) *AppError {
	msg := fmt.Sprintf("%s is not configured.", setting)
	if purpose != "" {
		msg = fmt.Sprintf("%s is not configured (%s).", setting, purpose)
	}
	return &AppError{
		Err:     ErrConfig,
		Message: msg,
		Field:   setting,
	}
}

// InvalidToken is deliberately undifferentiated: missing signature, expiry
// and tampering all produce the same message.
func InvalidToken(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidToken,
		Message: message,
	}
}

// Unauthorized is for routes that need a signed-in viewer.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Internal wraps a generic, client-safe message for datastore or transport
// failures. The underlying cause must be logged by the caller.
func Internal(message string) *AppError {
	return &AppError{
		Err:     ErrInternal,
		Message: message,
	}
}
