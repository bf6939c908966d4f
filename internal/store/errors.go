package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrQueueNotFound, ErrSnapshotNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a second queue document for one player).
	ErrDuplicate = errors.New("entity already exists")

	// ErrVersionConflict is returned by conditional writes when the persisted
	// version no longer equals the expected version. The atomic operations
	// manager retries these transparently up to a bound.
	ErrVersionConflict = errors.New("version conflict")

	// ErrStoreUnavailable is returned when the underlying storage engine
	// cannot be reached. Callers should retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Entity-specific "not found" errors

	// ErrQueueNotFound indicates that no queue document exists for the player.
	ErrQueueNotFound = fmt.Errorf("%w: queue document", ErrNotFound)

	// ErrSnapshotNotFound indicates that the requested snapshot does not exist.
	ErrSnapshotNotFound = fmt.Errorf("%w: snapshot", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// This includes the generic ErrNotFound and all entity-specific not found errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsVersionConflict checks if the error indicates a failed conditional write.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "queue", "snapshot")
	Operation string // The operation that failed (e.g., "save", "append")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
