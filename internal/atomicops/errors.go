package atomicops

import "errors"

// Errors surfaced by the atomic operations manager.
var (
	// ErrLockTimeout is returned when the per-player advisory lock could not
	// be acquired within the bounded wait. The operation had no side effects
	// and the caller may retry.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrConflict is returned when the conditional write lost the race more
	// times than the retry bound allows. No partial state was persisted; the
	// caller must re-fetch and resubmit.
	ErrConflict = errors.New("operation conflicted with concurrent writers")

	// ErrIntegrityFailure is returned when the mutated document failed
	// validation and could not be deterministically repaired. Nothing was
	// persisted; the caller should restore from a snapshot.
	ErrIntegrityFailure = errors.New("document failed integrity validation")

	// ErrTaskNotInFlight is returned when completion is requested for a task
	// that is not the current in-flight task.
	ErrTaskNotInFlight = errors.New("task is not in flight")
)
