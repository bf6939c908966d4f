// Package snapshot creates and restores point-in-time copies of queue
// documents. Snapshot history is bounded per player; restore runs through
// the atomic operations manager so version keeps increasing even across a
// logical rewind.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/veldtman/grind-api/internal/atomicops"
	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/store"
)

// Manager coordinates snapshot creation and restore for queue documents.
type Manager struct {
	queues    store.QueueStore
	snapshots store.SnapshotStore
	atomic    *atomicops.Manager
	logger    *slog.Logger
}

// NewManager creates a snapshot manager.
func NewManager(
	queues store.QueueStore,
	snapshots store.SnapshotStore,
	atomic *atomicops.Manager,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		queues:    queues,
		snapshots: snapshots,
		atomic:    atomic,
		logger:    logger,
	}
}

// Create snapshots the player's current document. A snapshot is a
// read-only export: it does not take the mutation lock, so it may trail a
// concurrent writer by one version, which is acceptable for recovery data.
func (m *Manager) Create(ctx context.Context, playerID string, reason domain.SnapshotReason) (*domain.Snapshot, error) {
	doc, err := m.queues.Get(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document for snapshot: %w", err)
	}

	snap, err := domain.NewSnapshot(doc, reason)
	if err != nil {
		return nil, err
	}

	maxSnapshots := doc.Config.MaxSnapshots
	if maxSnapshots <= 0 {
		maxSnapshots = domain.DefaultMaxSnapshots
	}

	if err := m.snapshots.Append(ctx, snap, maxSnapshots); err != nil {
		return nil, fmt.Errorf("failed to append snapshot: %w", err)
	}

	m.logger.Debug("snapshot created",
		"player_id", playerID,
		"snapshot_id", snap.ID,
		"reason", reason,
		"version", doc.Version)

	return snap, nil
}

// Restore replaces the player's document with the snapshot's content as a
// single atomic operation. The version bumps forward rather than rewinding.
func (m *Manager) Restore(ctx context.Context, playerID string, snapshotID uuid.UUID) (*domain.QueueDocument, error) {
	snap, err := m.snapshots.Get(ctx, playerID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	doc, err := m.atomic.Execute(ctx, playerID, atomicops.ReplaceDocument{Source: snap.Document})
	if err != nil {
		return nil, fmt.Errorf("failed to restore from snapshot: %w", err)
	}

	m.logger.Info("document restored from snapshot",
		"player_id", playerID,
		"snapshot_id", snapshotID,
		"snapshot_version", snap.Document.Version,
		"new_version", doc.Version)

	return doc, nil
}

// List returns the player's snapshot history, newest first.
func (m *Manager) List(ctx context.Context, playerID string) ([]*domain.Snapshot, error) {
	return m.snapshots.List(ctx, playerID)
}
