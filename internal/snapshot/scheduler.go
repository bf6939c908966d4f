package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/store"
)

// Scheduler periodically snapshots every running queue. It is best-effort
// background work: a failed snapshot is logged and skipped, never allowed
// to block or fail foreground mutations.
type Scheduler struct {
	manager  *Manager
	queues   store.QueueStore
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that snapshots running queues on the
// given interval.
func NewScheduler(manager *Manager, queues store.QueueStore, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		manager:  manager,
		queues:   queues,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background snapshot loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the loop and waits for the in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep snapshots every running player once.
func (s *Scheduler) sweep() {
	players, err := s.queues.ListRunning(s.ctx)
	if err != nil {
		s.logger.Error("scheduled snapshot sweep failed to list players", "error", err)
		return
	}

	for _, playerID := range players {
		if s.ctx.Err() != nil {
			return
		}
		if _, err := s.manager.Create(s.ctx, playerID, domain.SnapshotReasonScheduled); err != nil {
			s.logger.Warn("scheduled snapshot failed",
				"player_id", playerID,
				"error", err)
		}
	}
}
