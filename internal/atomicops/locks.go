package atomicops

import (
	"context"
	"sync"
	"time"
)

// lockTable holds one advisory lock per player. Locks are application-level
// mutual exclusion markers scoped to a player; the storage engine knows
// nothing about them. The table is constructed service state, injected into
// the manager, so tests can reset it by building a fresh one.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{
		locks: make(map[string]chan struct{}),
	}
}

// slot returns the player's lock channel, creating it on first use.
// A buffered channel of capacity one models the mutex: holding the token
// in the channel means the lock is taken.
func (t *lockTable) slot(playerID string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.locks[playerID]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[playerID] = ch
	}
	return ch
}

// acquire takes the player's advisory lock, waiting at most maxWait.
// It returns a release function that must be called on every exit path,
// or ErrLockTimeout when the bounded wait elapsed (in which case nothing
// is held and there is nothing to release).
func (t *lockTable) acquire(ctx context.Context, playerID string, maxWait time.Duration) (func(), error) {
	ch := t.slot(playerID)

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
