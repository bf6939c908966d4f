package atomicops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/integrity"
	"github.com/veldtman/grind-api/internal/store"
)

// Config holds the manager's concurrency-control tuning.
type Config struct {
	// LockWait bounds how long a caller may block waiting for another
	// operation on the same player to finish.
	LockWait time.Duration

	// MaxRetries bounds how many times a version conflict is retried
	// before surfacing ErrConflict.
	MaxRetries uint64

	// RetryBase is the initial backoff between conflict retries; it grows
	// exponentially.
	RetryBase time.Duration
}

// DefaultConfig returns conservative defaults for the manager.
func DefaultConfig() Config {
	return Config{
		LockWait:   2 * time.Second,
		MaxRetries: 5,
		RetryBase:  10 * time.Millisecond,
	}
}

// Manager serializes all mutations of one player's queue document. It is
// explicit, constructed service state: build one per process, inject it
// into request handlers, and throw it away between test cases.
type Manager struct {
	queues   store.QueueStore
	locks    *lockTable
	config   Config
	logger   *slog.Logger
	timeFunc func() time.Time // Injectable for testing
}

// NewManager creates an atomic operations manager over the given store.
func NewManager(queues store.QueueStore, config Config, logger *slog.Logger) *Manager {
	if config.LockWait <= 0 {
		config.LockWait = DefaultConfig().LockWait
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	if config.RetryBase <= 0 {
		config.RetryBase = DefaultConfig().RetryBase
	}

	return &Manager{
		queues:   queues,
		locks:    newLockTable(),
		config:   config,
		logger:   logger,
		timeFunc: func() time.Time { return time.Now().UTC() },
	}
}

// SetTimeFunc overrides the manager's clock. Tests use this to drive task
// deadlines deterministically.
func (m *Manager) SetTimeFunc(fn func() time.Time) {
	m.timeFunc = fn
}

// Execute runs one command atomically against the player's document and
// returns the resulting state. On success the returned document reflects
// exactly this operation's effect: version bumped by one when the command
// changed anything, untouched when it was a no-op.
func (m *Manager) Execute(ctx context.Context, playerID string, cmd Command) (*domain.QueueDocument, error) {
	release, err := m.locks.acquire(ctx, playerID, m.config.LockWait)
	if err != nil {
		m.logger.Warn("failed to acquire player lock",
			"player_id", playerID,
			"operation", cmd.Name(),
			"error", err)
		return nil, err
	}
	defer release()

	var result *domain.QueueDocument

	backoff := retry.WithMaxRetries(m.config.MaxRetries, retry.NewExponential(m.config.RetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		doc, created, err := m.loadOrCreate(ctx, playerID, cmd)
		if err != nil {
			return err
		}

		working := doc.Clone()
		now := m.timeFunc()

		changed, err := cmd.Apply(working, now)
		if err != nil {
			return err
		}
		if !changed && !created {
			// Nothing to persist; the no-op completes against current state.
			result = doc
			return nil
		}

		working.LastUpdated = now
		if err := integrity.Stamp(working); err != nil {
			return err
		}

		if report := integrity.Check(working); !report.Valid {
			if !report.CanRepair {
				return fmt.Errorf("%w: %d violation(s)", ErrIntegrityFailure, len(report.Violations))
			}
			repaired, repairErr := integrity.Repair(working)
			if repairErr != nil {
				m.logger.Error("repair failed after mutation",
					"player_id", playerID,
					"operation", cmd.Name(),
					"error", repairErr)
				return fmt.Errorf("%w: repair failed", ErrIntegrityFailure)
			}
			m.logger.Warn("document repaired during atomic operation",
				"player_id", playerID,
				"operation", cmd.Name(),
				"actions", report.RepairActions)
			working = repaired
		}
		working.LastValidated = now

		if created {
			if err := m.queues.Create(ctx, working); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					// Another writer created the document between our load
					// and create; reload and reapply.
					return retry.RetryableError(err)
				}
				return err
			}
		} else {
			if err := m.queues.Save(ctx, working, doc.Version); err != nil {
				if store.IsVersionConflict(err) {
					return retry.RetryableError(err)
				}
				return err
			}
		}

		result = working
		return nil
	})

	if err != nil {
		if store.IsVersionConflict(err) || errors.Is(err, store.ErrDuplicate) {
			m.logger.Warn("atomic operation exhausted conflict retries",
				"player_id", playerID,
				"operation", cmd.Name(),
				"max_retries", m.config.MaxRetries)
			return nil, fmt.Errorf("%w: %s on player %s", ErrConflict, cmd.Name(), playerID)
		}
		return nil, err
	}

	m.logger.Debug("atomic operation completed",
		"player_id", playerID,
		"operation", cmd.Name(),
		"version", result.Version)

	return result, nil
}

// loadOrCreate fetches the player's document, or hands back a fresh one
// when the command is allowed to create it (first task submission).
func (m *Manager) loadOrCreate(ctx context.Context, playerID string, cmd Command) (*domain.QueueDocument, bool, error) {
	doc, err := m.queues.Get(ctx, playerID)
	if err == nil {
		return doc, false, nil
	}
	if !errors.Is(err, store.ErrQueueNotFound) {
		return nil, false, err
	}

	if creator, ok := cmd.(queueCreator); ok && creator.CreatesQueue() {
		fresh, newErr := domain.NewQueueDocument(playerID)
		if newErr != nil {
			return nil, false, newErr
		}
		return fresh, true, nil
	}

	return nil, false, err
}
