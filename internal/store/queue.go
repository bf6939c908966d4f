package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veldtman/grind-api/internal/domain"
)

// QueueStore defines the persistence contract for queue documents.
//
// Save is the single compare-and-swap primitive the whole consistency model
// rests on: it succeeds only when the persisted version still equals
// expectedVersion, and then atomically writes the document with
// version = expectedVersion + 1. A lost race surfaces as ErrVersionConflict.
type QueueStore interface {
	// Get returns the current document for the player, or ErrQueueNotFound.
	// Reads are lock-free; they may race with a concurrent writer.
	Get(ctx context.Context, playerID string) (*domain.QueueDocument, error)

	// Create persists a brand-new document at version 1.
	// Returns ErrDuplicate if a document already exists for the player.
	Create(ctx context.Context, doc *domain.QueueDocument) error

	// Save conditionally replaces the persisted document. The stored version
	// must equal expectedVersion; on success the document is written with
	// version expectedVersion+1 and doc.Version is updated to match.
	Save(ctx context.Context, doc *domain.QueueDocument, expectedVersion int64) error

	// ListRunning returns the IDs of every player whose queue is currently
	// running. The tick processor and snapshot scheduler iterate this set.
	ListRunning(ctx context.Context) ([]string, error)

	// MarkSynced stamps the document's last-synced time after a client
	// completed a sync exchange. It is a metadata-only write: the version
	// does not change and no lock is required, so a losing race with a
	// concurrent mutation only costs an imprecise timestamp.
	// Returns ErrQueueNotFound when no document exists for the player.
	MarkSynced(ctx context.Context, playerID string, at time.Time) error
}

// SnapshotStore defines the persistence contract for the append-only
// per-player snapshot history. Appends are safe for unsynchronized
// concurrent writers; there is no read-modify-write race to protect.
type SnapshotStore interface {
	// Append adds a snapshot to the player's history, evicting the oldest
	// entries so at most maxSnapshots remain.
	Append(ctx context.Context, snap *domain.Snapshot, maxSnapshots int) error

	// Get returns one snapshot by player and snapshot ID.
	Get(ctx context.Context, playerID string, snapshotID uuid.UUID) (*domain.Snapshot, error)

	// List returns the player's snapshots, newest first.
	List(ctx context.Context, playerID string) ([]*domain.Snapshot, error)
}

// AuditStore defines the persistence contract for the append-only audit log.
type AuditStore interface {
	// Append writes one immutable audit record.
	Append(ctx context.Context, rec *domain.AuditRecord) error

	// ListSince returns records written at or after the given instant,
	// newest first.
	ListSince(ctx context.Context, since time.Time) ([]*domain.AuditRecord, error)

	// ListByPlayer returns records targeting the given player, newest first,
	// up to limit entries.
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.AuditRecord, error)
}
