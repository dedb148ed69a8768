// Package apperror defines the error taxonomy shared by every layer.
//
// Services return these errors (usually wrapped with fmt.Errorf("...: %w", err)),
// and the HTTP layer maps the sentinel at the bottom of the chain to a status
// code. Nothing in this package knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("unavailable")
	ErrCancelled    = errors.New("cancelled")
)

type AppError struct {
	Err     error  // sentinel this error classifies as
	Message string // human-readable, safe to show to the guest
	Field   string // optional: form field that caused the error
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

// NotFoundMessage is NotFound with a fixed message, for lookups that are not
// keyed by an id the guest would recognise (e.g. "RSVP not found").
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means there is no usable session. Page routes redirect to the
// login page instead of surfacing it.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unavailable reports an external integration (storage, weather, mail relay)
// that is not configured or did not answer.
func Unavailable(integration string, err error) *AppError {
	msg := fmt.Sprintf("%s is currently unavailable", integration)
	if err == nil {
		msg = fmt.Sprintf("%s is not configured", integration)
	}
	return &AppError{
		Err:     ErrUnavailable,
		Message: msg,
	}
}

// Cancelled reports a flow the guest abandoned, such as an upload aborted
// mid-request. It is surfaced as a passive notice, not a failure.
func Cancelled(message string) *AppError {
	return &AppError{
		Err:     ErrCancelled,
		Message: message,
	}
}
