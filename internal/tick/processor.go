// Package tick drives task progress. A fixed-rate loop advances every
// running queue through the atomic operations manager, so the tick is just
// another caller subject to the same per-player concurrency rules as any
// request handler.
package tick

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/veldtman/grind-api/internal/atomicops"
	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/store"
)

const (
	defaultInterval = time.Second
	defaultWorkers  = 8
)

// Notifier pushes tick-driven state changes to live connections.
type Notifier interface {
	NotifyQueueChanged(doc *domain.QueueDocument)
}

// Processor advances in-flight tasks for every running queue on a fixed
// interval. Per-player work fans out over a bounded worker pool; one slow
// player must not stall the rest of the sweep.
type Processor struct {
	manager  *atomicops.Manager
	queues   store.QueueStore
	notifier Notifier
	interval time.Duration
	workers  int
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates a tick processor. notifier may be nil.
func NewProcessor(manager *atomicops.Manager, queues store.QueueStore, notifier Notifier, interval time.Duration, workers int, logger *slog.Logger) *Processor {
	if interval <= 0 {
		interval = defaultInterval
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		manager:  manager,
		queues:   queues,
		notifier: notifier,
		interval: interval,
		workers:  workers,
		logger:   logger.With(slog.String("component", "tick_processor")),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background tick loop.
func (p *Processor) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop cancels the loop and waits for the in-flight sweep to finish.
func (p *Processor) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Processor) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Sweep(p.ctx)
		}
	}
}

// Sweep advances every running queue once. It is exported so tests and
// operational tooling can drive ticks without the timer loop.
func (p *Processor) Sweep(ctx context.Context) {
	players, err := p.queues.ListRunning(ctx)
	if err != nil {
		p.logger.Error("tick sweep failed to list running queues",
			slog.String("error", err.Error()))
		return
	}
	if len(players) == 0 {
		return
	}

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for _, playerID := range players {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(playerID string) {
			defer wg.Done()
			defer func() { <-sem }()
			p.advance(ctx, playerID)
		}(playerID)
	}
	wg.Wait()
}

// advance runs one AdvanceTick mutation for the player. Conflicts with
// foreground operations are expected and dropped; the next tick catches up.
func (p *Processor) advance(ctx context.Context, playerID string) {
	doc, err := p.manager.Execute(ctx, playerID, atomicops.AdvanceTick{})
	if err != nil {
		switch {
		case errors.Is(err, atomicops.ErrConflict),
			errors.Is(err, atomicops.ErrLockTimeout),
			errors.Is(err, store.ErrQueueNotFound),
			errors.Is(err, context.Canceled):
			p.logger.Debug("tick skipped",
				slog.String("player_id", playerID),
				slog.String("reason", err.Error()))
		default:
			p.logger.Error("tick failed",
				slog.String("player_id", playerID),
				slog.String("error", err.Error()))
		}
		return
	}

	if p.notifier != nil {
		p.notifier.NotifyQueueChanged(doc)
	}
}
