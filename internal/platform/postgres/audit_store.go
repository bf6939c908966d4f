package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/store"
)

// AuditStore implements store.AuditStore using PostgreSQL. The table is
// append-only; nothing in this implementation updates or deletes rows.
type AuditStore struct {
	db store.DBTX
}

var _ store.AuditStore = (*AuditStore)(nil)

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db store.DBTX) *AuditStore {
	return &AuditStore{
		db: db,
	}
}

// Append writes one immutable audit record.
func (s *AuditStore) Append(ctx context.Context, rec *domain.AuditRecord) error {
	log := logger.FromContext(ctx)

	var metadata []byte
	if rec.Metadata != nil {
		var err error
		metadata, err = json.Marshal(rec.Metadata)
		if err != nil {
			return store.NewStoreError("audit", "append", "encode metadata failed", err)
		}
	}

	query := `
		INSERT INTO audit_records
			(operation, actor_id, target_player_id, success, error_message,
			 is_admin_action, admin_level, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.Operation,
		rec.ActorID,
		rec.TargetPlayerID,
		rec.Success,
		nullString(rec.ErrorMessage),
		rec.IsAdminAction,
		rec.AdminLevel,
		metadata,
		rec.OccurredAt,
	)
	if err != nil {
		log.Error("failed to append audit record",
			"operation", rec.Operation,
			"target_player_id", rec.TargetPlayerID,
			"error", err)
		return store.NewStoreError("audit", "append", "insert failed", err)
	}

	return nil
}

// ListSince returns records written at or after the given instant, newest first.
func (s *AuditStore) ListSince(ctx context.Context, since time.Time) ([]*domain.AuditRecord, error) {
	query := `
		SELECT operation, actor_id, target_player_id, success, error_message,
		       is_admin_action, admin_level, metadata, occurred_at
		FROM audit_records
		WHERE occurred_at >= $1
		ORDER BY occurred_at DESC
	`
	return s.queryRecords(ctx, query, since)
}

// ListByPlayer returns records targeting the given player, newest first.
func (s *AuditStore) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT operation, actor_id, target_player_id, success, error_message,
		       is_admin_action, admin_level, metadata, occurred_at
		FROM audit_records
		WHERE target_player_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	return s.queryRecords(ctx, query, playerID, limit)
}

func (s *AuditStore) queryRecords(ctx context.Context, query string, args ...any) ([]*domain.AuditRecord, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query audit records", "error", err)
		return nil, store.NewStoreError("audit", "list", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var errorMessage sql.NullString
		var metadata []byte

		if err := rows.Scan(
			&rec.Operation,
			&rec.ActorID,
			&rec.TargetPlayerID,
			&rec.Success,
			&errorMessage,
			&rec.IsAdminAction,
			&rec.AdminLevel,
			&metadata,
			&rec.OccurredAt,
		); err != nil {
			return nil, store.NewStoreError("audit", "list", "scan failed", err)
		}

		rec.ErrorMessage = errorMessage.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, store.NewStoreError("audit", "list", "decode metadata failed", err)
			}
		}

		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("audit", "list", "iteration failed", err)
	}

	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
