package api

import (
	"errors"
	"net/http"

	"github.com/veldtman/grind-api/internal/atomicops"
	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/security"
	"github.com/veldtman/grind-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error detail to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, security.ErrRateLimited):
		return http.StatusTooManyRequests

	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, store.ErrQueueNotFound),
		errors.Is(err, store.ErrSnapshotNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrQueueFull),
		errors.Is(err, domain.ErrQueueDurationExceeded),
		errors.Is(err, atomicops.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrTaskIDEmpty),
		errors.Is(err, domain.ErrInvalidTaskType),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, atomicops.ErrTaskNotInFlight):
		return http.StatusBadRequest

	case errors.Is(err, atomicops.ErrLockTimeout),
		errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the error.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"

	case errors.Is(err, security.ErrRateLimited):
		return "Too many requests"

	case errors.Is(err, domain.ErrUnauthorized):
		return "Operation not permitted"

	case errors.Is(err, store.ErrQueueNotFound):
		return "Queue not found"

	case errors.Is(err, store.ErrSnapshotNotFound):
		return "Snapshot not found"

	case errors.Is(err, domain.ErrQueueFull):
		return "Queue is full"

	case errors.Is(err, domain.ErrQueueDurationExceeded):
		return "Total queued duration limit exceeded"

	case errors.Is(err, atomicops.ErrConflict):
		return "Operation conflicted with concurrent changes, please retry"

	case errors.Is(err, atomicops.ErrTaskNotInFlight):
		return "Task is not currently in flight"

	case errors.Is(err, atomicops.ErrLockTimeout):
		return "Queue is busy, please retry"

	case errors.Is(err, store.ErrStoreUnavailable):
		return "Service temporarily unavailable"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrTaskIDEmpty),
		errors.Is(err, domain.ErrInvalidTaskType),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidPriority):
		return "Invalid task data"

	default:
		return "An unexpected error occurred"
	}
}
