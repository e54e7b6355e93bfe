package api

import (
	"errors"
	"net/http"

	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, task.ErrTaskNotFound):
		return http.StatusNotFound

	// The task was cancelled; its result is gone for good
	case errors.Is(err, task.ErrTaskCancelled):
		return http.StatusGone

	// The task has not reached a terminal status yet
	case errors.Is(err, task.ErrTaskNotFinished):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrNoScenes),
		errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest

	// Shutdown in progress
	case errors.Is(err, task.ErrManagerStopped):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Validation and parse failures include their
// detail, which is derived from client input; everything else collapses to
// a generic message so internal details never leak.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, task.ErrTaskCancelled):
		return "Task was cancelled"

	case errors.Is(err, task.ErrTaskNotFinished):
		return "Task has not finished yet"

	case errors.Is(err, domain.ErrNoScenes):
		return "Script contains no scenes"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat):
		// Parse and validation errors describe the client's own input.
		return err.Error()

	case errors.Is(err, task.ErrManagerStopped):
		return "Server is shutting down"

	default:
		return "An unexpected error occurred"
	}
}
