// Package memstore provides in-memory implementations of the store
// interfaces. They honor the same conditional-write semantics as the
// Postgres implementations and exist for tests and local development,
// where spinning up a database is unnecessary.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/store"
)

// QueueStore is an in-memory store.QueueStore. A single mutex guards the
// document map; the conditional Save models the compare-and-swap write the
// durable store must provide.
type QueueStore struct {
	mu   sync.Mutex
	docs map[string]*domain.QueueDocument
}

var _ store.QueueStore = (*QueueStore)(nil)

// NewQueueStore creates an empty in-memory queue store.
func NewQueueStore() *QueueStore {
	return &QueueStore{
		docs: make(map[string]*domain.QueueDocument),
	}
}

// Get returns a deep copy of the player's document so callers cannot
// mutate stored state out of band.
func (s *QueueStore) Get(ctx context.Context, playerID string) (*domain.QueueDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[playerID]
	if !ok {
		return nil, store.ErrQueueNotFound
	}
	return doc.Clone(), nil
}

// Create persists a brand-new document at version 1.
func (s *QueueStore) Create(ctx context.Context, doc *domain.QueueDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.PlayerID]; ok {
		return store.ErrDuplicate
	}

	stored := doc.Clone()
	stored.Version = 1
	s.docs[doc.PlayerID] = stored
	doc.Version = 1
	return nil
}

// Save conditionally replaces the stored document. The stored version must
// equal expectedVersion or ErrVersionConflict is returned.
func (s *QueueStore) Save(ctx context.Context, doc *domain.QueueDocument, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.docs[doc.PlayerID]
	if !ok {
		return store.ErrQueueNotFound
	}
	if current.Version != expectedVersion {
		return store.ErrVersionConflict
	}

	stored := doc.Clone()
	stored.Version = expectedVersion + 1
	s.docs[doc.PlayerID] = stored
	doc.Version = stored.Version
	return nil
}

// MarkSynced stamps the stored document's last-synced time.
func (s *QueueStore) MarkSynced(ctx context.Context, playerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[playerID]
	if !ok {
		return store.ErrQueueNotFound
	}
	doc.LastSynced = at
	return nil
}

// ListRunning returns the IDs of players whose queue is flagged running.
func (s *QueueStore) ListRunning(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, doc := range s.docs {
		if doc.IsRunning {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// SnapshotStore is an in-memory store.SnapshotStore.
type SnapshotStore struct {
	mu    sync.Mutex
	snaps map[string][]*domain.Snapshot
}

var _ store.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snaps: make(map[string][]*domain.Snapshot),
	}
}

// Append adds a snapshot to the player's history, evicting the oldest
// entries beyond maxSnapshots.
func (s *SnapshotStore) Append(ctx context.Context, snap *domain.Snapshot, maxSnapshots int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.snaps[snap.PlayerID], snap)
	if maxSnapshots > 0 && len(history) > maxSnapshots {
		history = history[len(history)-maxSnapshots:]
	}
	s.snaps[snap.PlayerID] = history
	return nil
}

// Get returns one snapshot by player and snapshot ID.
func (s *SnapshotStore) Get(ctx context.Context, playerID string, snapshotID uuid.UUID) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range s.snaps[playerID] {
		if snap.ID == snapshotID {
			return snap, nil
		}
	}
	return nil, store.ErrSnapshotNotFound
}

// List returns the player's snapshots, newest first.
func (s *SnapshotStore) List(ctx context.Context, playerID string) ([]*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.snaps[playerID]
	out := make([]*domain.Snapshot, len(history))
	for i := range history {
		out[len(history)-1-i] = history[i]
	}
	return out, nil
}

// AuditStore is an in-memory store.AuditStore.
type AuditStore struct {
	mu      sync.Mutex
	records []*domain.AuditRecord
}

var _ store.AuditStore = (*AuditStore)(nil)

// NewAuditStore creates an empty in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Append writes one immutable audit record.
func (s *AuditStore) Append(ctx context.Context, rec *domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	return nil
}

// ListSince returns records written at or after the given instant, newest first.
func (s *AuditStore) ListSince(ctx context.Context, since time.Time) ([]*domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.AuditRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if !s.records[i].OccurredAt.Before(since) {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// ListByPlayer returns records targeting the given player, newest first.
func (s *AuditStore) ListByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.AuditRecord
	for i := len(s.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.records[i].TargetPlayerID == playerID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}
