package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/platform/memstore"
	"github.com/veldtman/grind-api/internal/store"
)

func TestQueueStoreConditionalWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.NewQueueStore()

	doc, err := domain.NewQueueDocument("player-1")
	require.NoError(t, err)

	t.Run("get before create returns not found", func(t *testing.T) {
		_, err := s.Get(ctx, "player-1")
		assert.ErrorIs(t, err, store.ErrQueueNotFound)
	})

	t.Run("create stores version 1", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, doc))
		assert.Equal(t, int64(1), doc.Version)

		assert.ErrorIs(t, s.Create(ctx, doc), store.ErrDuplicate)
	})

	t.Run("save succeeds only against the current version", func(t *testing.T) {
		loaded, err := s.Get(ctx, "player-1")
		require.NoError(t, err)

		loaded.IsPaused = true
		require.NoError(t, s.Save(ctx, loaded, 1))
		assert.Equal(t, int64(2), loaded.Version)

		// A second writer holding the stale version loses the race.
		stale := loaded.Clone()
		stale.IsPaused = false
		assert.ErrorIs(t, s.Save(ctx, stale, 1), store.ErrVersionConflict)
	})

	t.Run("get returns an isolated copy", func(t *testing.T) {
		first, err := s.Get(ctx, "player-1")
		require.NoError(t, err)
		first.PlayerID = "mutated"

		second, err := s.Get(ctx, "player-1")
		require.NoError(t, err)
		assert.Equal(t, "player-1", second.PlayerID)
	})
}

func TestQueueStoreMarkSynced(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.NewQueueStore()

	assert.ErrorIs(t, s.MarkSynced(ctx, "player-1", time.Now()), store.ErrQueueNotFound)

	doc, err := domain.NewQueueDocument("player-1")
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, doc))

	syncedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkSynced(ctx, "player-1", syncedAt))

	loaded, err := s.Get(ctx, "player-1")
	require.NoError(t, err)
	assert.Equal(t, syncedAt, loaded.LastSynced)
	assert.Equal(t, int64(1), loaded.Version)
}

func TestQueueStoreListRunning(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.NewQueueStore()

	for _, id := range []string{"b", "a", "c"} {
		doc, err := domain.NewQueueDocument(id)
		require.NoError(t, err)
		if id == "c" {
			doc.IsRunning = false
		}
		require.NoError(t, s.Create(ctx, doc))
	}

	ids, err := s.ListRunning(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestSnapshotStoreEvictsOldest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.NewSnapshotStore()

	doc, err := domain.NewQueueDocument("player-1")
	require.NoError(t, err)

	var last *domain.Snapshot
	for i := 0; i < 4; i++ {
		snap, err := domain.NewSnapshot(doc, domain.SnapshotReasonScheduled)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, snap, 3))
		last = snap
	}

	snaps, err := s.List(ctx, "player-1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, last.ID, snaps[0].ID)

	got, err := s.Get(ctx, "player-1", last.ID)
	require.NoError(t, err)
	assert.Equal(t, last.ID, got.ID)
}

func TestAuditStoreFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.NewAuditStore()

	now := time.Now().UTC()
	records := []*domain.AuditRecord{
		{Operation: "add_task", TargetPlayerID: "p1", OccurredAt: now.Add(-2 * time.Hour)},
		{Operation: "remove_task", TargetPlayerID: "p2", OccurredAt: now.Add(-30 * time.Minute)},
		{Operation: "add_task", TargetPlayerID: "p1", OccurredAt: now},
	}
	for _, rec := range records {
		require.NoError(t, s.Append(ctx, rec))
	}

	recent, err := s.ListSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	byPlayer, err := s.ListByPlayer(ctx, "p1", 1)
	require.NoError(t, err)
	require.Len(t, byPlayer, 1)
	assert.Equal(t, now, byPlayer[0].OccurredAt)
}
