package domain

import (
	"time"

	"github.com/google/uuid"
)

// SnapshotReason explains why a snapshot was taken.
type SnapshotReason string

// Known snapshot reasons.
const (
	SnapshotReasonManual       SnapshotReason = "manual"
	SnapshotReasonScheduled    SnapshotReason = "scheduled"
	SnapshotReasonPreRepair    SnapshotReason = "pre-repair"
	SnapshotReasonPreMigration SnapshotReason = "pre-migration"
)

// IsValidSnapshotReason reports whether r is a known snapshot reason.
func IsValidSnapshotReason(r SnapshotReason) bool {
	switch r {
	case SnapshotReasonManual, SnapshotReasonScheduled,
		SnapshotReasonPreRepair, SnapshotReasonPreMigration:
		return true
	}
	return false
}

// Snapshot is an immutable, timestamped full copy of a queue document
// retained for recovery. Snapshots are append-only and age out by
// capacity, never by explicit deletion.
type Snapshot struct {
	ID        uuid.UUID      `json:"id"`
	PlayerID  string         `json:"player_id"`
	Reason    SnapshotReason `json:"reason"`
	Document  *QueueDocument `json:"document"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewSnapshot creates a snapshot of the given document. The document is
// deep-copied so later mutations cannot leak into the history.
func NewSnapshot(doc *QueueDocument, reason SnapshotReason) (*Snapshot, error) {
	if doc == nil || doc.PlayerID == "" {
		return nil, ErrPlayerIDEmpty
	}
	if !IsValidSnapshotReason(reason) {
		return nil, ErrSnapshotReasonInvalid
	}

	return &Snapshot{
		ID:        uuid.New(),
		PlayerID:  doc.PlayerID,
		Reason:    reason,
		Document:  doc.Clone(),
		CreatedAt: time.Now().UTC(),
	}, nil
}
