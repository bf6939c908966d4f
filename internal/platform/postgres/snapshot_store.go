package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/store"
)

// SnapshotStore implements store.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	db *sql.DB
}

var _ store.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{
		db: db,
	}
}

// Append adds a snapshot to the player's history and evicts the oldest
// rows beyond maxSnapshots. Insert and eviction run in one transaction so
// a crash between them never leaves the history over its cap.
func (s *SnapshotStore) Append(ctx context.Context, snap *domain.Snapshot, maxSnapshots int) error {
	log := logger.FromContext(ctx)

	body, err := json.Marshal(snap.Document)
	if err != nil {
		return store.NewStoreError("snapshot", "append", "encode failed", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		insert := `
			INSERT INTO queue_snapshots (id, player_id, reason, body, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`

		_, err := tx.ExecContext(ctx, insert,
			snap.ID,
			snap.PlayerID,
			string(snap.Reason),
			body,
			snap.CreatedAt,
		)
		if err != nil {
			return store.NewStoreError("snapshot", "append", "insert failed", err)
		}

		if maxSnapshots > 0 {
			evict := `
				DELETE FROM queue_snapshots
				WHERE player_id = $1
				  AND id NOT IN (
					SELECT id FROM queue_snapshots
					WHERE player_id = $1
					ORDER BY created_at DESC
					LIMIT $2
				  )
			`
			if _, err := tx.ExecContext(ctx, evict, snap.PlayerID, maxSnapshots); err != nil {
				return store.NewStoreError("snapshot", "append", "eviction failed", err)
			}
		}

		return nil
	})
	if err != nil {
		log.Error("failed to append snapshot",
			"player_id", snap.PlayerID,
			"snapshot_id", snap.ID,
			"error", err)
		return err
	}

	return nil
}

// Get returns one snapshot by player and snapshot ID.
func (s *SnapshotStore) Get(ctx context.Context, playerID string, snapshotID uuid.UUID) (*domain.Snapshot, error) {
	query := `
		SELECT id, player_id, reason, body, created_at
		FROM queue_snapshots
		WHERE player_id = $1 AND id = $2
	`

	snap, err := s.scanSnapshot(s.db.QueryRowContext(ctx, query, playerID, snapshotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSnapshotNotFound
		}
		return nil, store.NewStoreError("snapshot", "get", "query failed", err)
	}
	return snap, nil
}

// List returns the player's snapshots, newest first.
func (s *SnapshotStore) List(ctx context.Context, playerID string) ([]*domain.Snapshot, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, player_id, reason, body, created_at
		FROM queue_snapshots
		WHERE player_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, playerID)
	if err != nil {
		log.Error("failed to list snapshots",
			"player_id", playerID,
			"error", err)
		return nil, store.NewStoreError("snapshot", "list", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []*domain.Snapshot
	for rows.Next() {
		snap, err := s.scanSnapshot(rows)
		if err != nil {
			return nil, store.NewStoreError("snapshot", "list", "scan failed", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("snapshot", "list", "iteration failed", err)
	}

	return snaps, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SnapshotStore) scanSnapshot(row rowScanner) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	var reason string
	var body []byte

	if err := row.Scan(&snap.ID, &snap.PlayerID, &reason, &body, &snap.CreatedAt); err != nil {
		return nil, err
	}

	snap.Reason = domain.SnapshotReason(reason)
	var doc domain.QueueDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	snap.Document = &doc

	return &snap, nil
}
