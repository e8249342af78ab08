package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied indicates a cross-tenant access attempt. Never retried.
	ErrAccessDenied = errors.New("access denied")
	// ErrConcurrencyConflict indicates the optimistic-concurrency check failed
	// after the internal retry. Callers may retry the whole operation.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)

// ValidationError marks malformed input. Surfaced to the caller immediately
// and never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Validationf builds a ValidationError without a field reference.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// FieldError builds a ValidationError bound to a named input field.
func FieldError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether the failure is worth retrying by the caller.
// Validation and access failures are permanent; everything else (conflicts,
// infrastructure) may succeed on a later attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsValidation(err) || errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrNotFound) {
		return false
	}
	return true
}

// UserSafeMessage returns an error message safe to show to API consumers.
// Infrastructure details are collapsed to a generic message.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err), errors.Is(err, ErrNotFound), errors.Is(err, ErrAccessDenied):
		return err.Error()
	case errors.Is(err, ErrConcurrencyConflict):
		return "the record was modified concurrently, please retry"
	default:
		return "internal error"
	}
}
