// Package postgres implements the store interfaces on PostgreSQL.
// The queue store's conditional UPDATE (version column in the WHERE
// clause) is the compare-and-swap primitive every higher-level atomicity
// guarantee is built on.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/store"
)

// QueueStore implements store.QueueStore using PostgreSQL.
type QueueStore struct {
	db store.DBTX
}

var _ store.QueueStore = (*QueueStore)(nil)

// NewQueueStore creates a new QueueStore.
func NewQueueStore(db store.DBTX) *QueueStore {
	return &QueueStore{
		db: db,
	}
}

// Get returns the current document for the player, or ErrQueueNotFound.
func (s *QueueStore) Get(ctx context.Context, playerID string) (*domain.QueueDocument, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT body, version
		FROM queue_documents
		WHERE player_id = $1
	`

	var body []byte
	var version int64
	err := s.db.QueryRowContext(ctx, query, playerID).Scan(&body, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrQueueNotFound
		}
		log.Error("failed to load queue document",
			"player_id", playerID,
			"error", err)
		return nil, store.NewStoreError("queue", "get", "query failed", err)
	}

	var doc domain.QueueDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		log.Error("failed to decode queue document",
			"player_id", playerID,
			"error", err)
		return nil, store.NewStoreError("queue", "get", "decode failed", err)
	}

	// The version column is authoritative; the body copy may lag a
	// concurrent conditional update by one scan cycle.
	doc.Version = version
	return &doc, nil
}

// Create persists a brand-new document at version 1.
func (s *QueueStore) Create(ctx context.Context, doc *domain.QueueDocument) error {
	log := logger.FromContext(ctx)

	stored := doc.Clone()
	stored.Version = 1

	body, err := json.Marshal(stored)
	if err != nil {
		return store.NewStoreError("queue", "create", "encode failed", err)
	}

	query := `
		INSERT INTO queue_documents (player_id, version, checksum, body, is_running, updated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (player_id) DO NOTHING
	`

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		stored.PlayerID,
		stored.Version,
		stored.Checksum,
		body,
		stored.IsRunning,
		now,
		now,
	)
	if err != nil {
		log.Error("failed to create queue document",
			"player_id", stored.PlayerID,
			"error", err)
		return store.NewStoreError("queue", "create", "insert failed", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("queue", "create", "rows affected unavailable", err)
	}
	if rows == 0 {
		return store.ErrDuplicate
	}

	doc.Version = 1
	return nil
}

// Save conditionally replaces the persisted document. The WHERE clause on
// the version column makes the write a compare-and-swap: zero affected
// rows means a concurrent writer got there first (or the document is gone).
func (s *QueueStore) Save(ctx context.Context, doc *domain.QueueDocument, expectedVersion int64) error {
	log := logger.FromContext(ctx)

	stored := doc.Clone()
	stored.Version = expectedVersion + 1

	body, err := json.Marshal(stored)
	if err != nil {
		return store.NewStoreError("queue", "save", "encode failed", err)
	}

	query := `
		UPDATE queue_documents
		SET version = $1, checksum = $2, body = $3, is_running = $4, updated_at = $5
		WHERE player_id = $6 AND version = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		stored.Version,
		stored.Checksum,
		body,
		stored.IsRunning,
		time.Now().UTC(),
		stored.PlayerID,
		expectedVersion,
	)
	if err != nil {
		log.Error("failed to save queue document",
			"player_id", stored.PlayerID,
			"expected_version", expectedVersion,
			"error", err)
		return store.NewStoreError("queue", "save", "conditional update failed", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("queue", "save", "rows affected unavailable", err)
	}
	if rows == 0 {
		// Distinguish a lost race from a missing document.
		var exists bool
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM queue_documents WHERE player_id = $1)`,
			stored.PlayerID,
		).Scan(&exists)
		if checkErr != nil {
			return store.NewStoreError("queue", "save", "existence check failed", checkErr)
		}
		if !exists {
			return store.ErrQueueNotFound
		}
		return fmt.Errorf("%w: player %s at version %d", store.ErrVersionConflict,
			stored.PlayerID, expectedVersion)
	}

	doc.Version = stored.Version
	return nil
}

// MarkSynced stamps the document's last-synced time inside the JSONB body.
// The version column stays untouched: sync acknowledgement is metadata, not
// a mutation, so it must not invalidate concurrent conditional writes.
func (s *QueueStore) MarkSynced(ctx context.Context, playerID string, at time.Time) error {
	log := logger.FromContext(ctx)

	encoded, err := json.Marshal(at)
	if err != nil {
		return store.NewStoreError("queue", "mark_synced", "encode timestamp failed", err)
	}

	query := `
		UPDATE queue_documents
		SET body = jsonb_set(body, '{last_synced}', $1::jsonb)
		WHERE player_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, encoded, playerID)
	if err != nil {
		log.Error("failed to mark queue synced",
			"player_id", playerID,
			"error", err)
		return store.NewStoreError("queue", "mark_synced", "update failed", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("queue", "mark_synced", "rows affected unavailable", err)
	}
	if rows == 0 {
		return store.ErrQueueNotFound
	}

	return nil
}

// ListRunning returns the IDs of every player whose queue is running.
func (s *QueueStore) ListRunning(ctx context.Context) ([]string, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT player_id
		FROM queue_documents
		WHERE is_running = TRUE
		ORDER BY player_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list running queues", "error", err)
		return nil, store.NewStoreError("queue", "list_running", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("queue", "list_running", "scan failed", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("queue", "list_running", "iteration failed", err)
	}

	return ids, nil
}
