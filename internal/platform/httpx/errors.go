// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/tahseel-hq/tahseel/internal/shared"
)

// RespondError maps domain errors to RFC7807 problem responses. Infrastructure
// failures collapse to a generic 500 so internals never leak to callers.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case shared.IsValidation(err):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrAccessDenied):
		Problem(w, http.StatusForbidden, "Forbidden", "access denied")
	case errors.Is(err, shared.ErrConcurrencyConflict):
		Problem(w, http.StatusConflict, "Conflict", "the resource changed while processing, retry the request")
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate", "request with this idempotency key was already processed")
	case errors.Is(err, shared.ErrInvalidAPIKey):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or revoked API key")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
