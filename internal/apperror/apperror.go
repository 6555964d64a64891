// Package apperror defines the typed failures every layer of MovieBrain returns.
//
// Callers never compare error strings. They ask errors.Is(err, apperror.ErrNotFound)
// (or ErrConflict, ErrValidation, ErrUnavailable) and get a yes/no answer no matter
// how many times the error was wrapped with fmt.Errorf("...: %w", err) on the way up.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("storage unavailable")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying driver/transport error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation: a duplicate title, user name,
// or a second link between the same user and movie.
func Conflict(resource, key string, cause error) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", resource, key),
		Cause:   cause,
	}
}

// Unavailable reports a connection or transaction failure. The current
// operation is abandoned; the process keeps running.
func Unavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: op,
		Cause:   cause,
	}
}

// Kind returns a short machine-friendly name for err's sentinel, or
// "internal" when err carries none of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}
