package tick

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtman/grind-api/internal/atomicops"
	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/platform/memstore"
)

type countingNotifier struct {
	mu   sync.Mutex
	docs []*domain.QueueDocument
}

func (n *countingNotifier) NotifyQueueChanged(doc *domain.QueueDocument) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.docs = append(n.docs, doc)
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.docs)
}

func addTask(t *testing.T, manager *atomicops.Manager, playerID, taskID string, duration time.Duration) {
	t.Helper()

	_, err := manager.Execute(context.Background(), playerID, atomicops.AddTask{
		Task: domain.Task{ID: taskID, Type: domain.TaskTypeHarvesting, Duration: duration},
	})
	require.NoError(t, err)
}

func TestProcessor_SweepCompletesElapsedTasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := logger.Setup("error")
	queues := memstore.NewQueueStore()
	manager := atomicops.NewManager(queues, atomicops.DefaultConfig(), log)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start
	manager.SetTimeFunc(func() time.Time { return now })

	addTask(t, manager, "p1", "short", time.Minute)
	addTask(t, manager, "p1", "next", time.Minute)
	addTask(t, manager, "p2", "long", time.Hour)

	notifier := &countingNotifier{}
	proc := NewProcessor(manager, queues, notifier, time.Second, 4, log)

	now = start.Add(61 * time.Second)
	proc.Sweep(ctx)

	p1, err := queues.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p1.TotalTasksCompleted)
	require.NotNil(t, p1.CurrentTask)
	assert.Equal(t, "next", p1.CurrentTask.ID)

	p2, err := queues.Get(ctx, "p2")
	require.NoError(t, err)
	require.NotNil(t, p2.CurrentTask)
	assert.False(t, p2.CurrentTask.Completed)
	assert.Greater(t, p2.CurrentTask.Progress, 0.0)
	assert.Less(t, p2.CurrentTask.Progress, 1.0)

	assert.Equal(t, 2, notifier.count())
}

func TestProcessor_SweepSkipsStoppedQueues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := logger.Setup("error")
	queues := memstore.NewQueueStore()
	manager := atomicops.NewManager(queues, atomicops.DefaultConfig(), log)

	addTask(t, manager, "p1", "task", time.Hour)
	_, err := manager.Execute(ctx, "p1", atomicops.StopAll{})
	require.NoError(t, err)

	before, err := queues.Get(ctx, "p1")
	require.NoError(t, err)

	proc := NewProcessor(manager, queues, nil, time.Second, 4, log)
	proc.Sweep(ctx)

	after, err := queues.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

func TestProcessor_StartStop(t *testing.T) {
	t.Parallel()

	log := logger.Setup("error")
	queues := memstore.NewQueueStore()
	manager := atomicops.NewManager(queues, atomicops.DefaultConfig(), log)

	addTask(t, manager, "p1", "task", 50*time.Millisecond)

	proc := NewProcessor(manager, queues, nil, 20*time.Millisecond, 4, log)
	proc.Start()

	require.Eventually(t, func() bool {
		doc, err := queues.Get(context.Background(), "p1")
		return err == nil && doc.TotalTasksCompleted == 1
	}, 2*time.Second, 10*time.Millisecond)

	proc.Stop()
}
