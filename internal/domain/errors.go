package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrPlayerIDEmpty is returned when a queue document has no player ID.
	ErrPlayerIDEmpty = errors.New("player ID cannot be empty")

	// ErrTaskIDEmpty is returned when a task has no ID.
	ErrTaskIDEmpty = errors.New("task ID cannot be empty")

	// ErrInvalidTaskType is returned when a task type is not one of the
	// known work categories.
	ErrInvalidTaskType = errors.New("invalid task type")

	// ErrInvalidDuration is returned when a task duration is zero, negative,
	// or exceeds the configured per-task maximum.
	ErrInvalidDuration = errors.New("invalid task duration")

	// ErrInvalidPriority is returned when a task priority is outside the
	// accepted 0-10 range.
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrQueueFull is returned when adding a task would exceed the queue's
	// configured capacity.
	ErrQueueFull = errors.New("queue is at capacity")

	// ErrQueueDurationExceeded is returned when adding a task would push the
	// total queued duration past the configured ceiling.
	ErrQueueDurationExceeded = errors.New("total queue duration exceeded")

	// ErrSnapshotReasonInvalid is returned when a snapshot carries an
	// unknown reason.
	ErrSnapshotReasonInvalid = errors.New("invalid snapshot reason")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)
