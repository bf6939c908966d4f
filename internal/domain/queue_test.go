package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtman/grind-api/internal/domain"
)

func TestNewQueueDocument(t *testing.T) {
	t.Parallel()

	t.Run("creates an empty running queue", func(t *testing.T) {
		t.Parallel()

		doc, err := domain.NewQueueDocument("player-1")
		require.NoError(t, err)

		assert.Equal(t, "player-1", doc.PlayerID)
		assert.Equal(t, int64(0), doc.Version)
		assert.True(t, doc.IsRunning)
		assert.False(t, doc.IsPaused)
		assert.Nil(t, doc.CurrentTask)
		assert.Empty(t, doc.QueuedTasks)
		assert.Equal(t, domain.DefaultMaxQueueSize, doc.Config.MaxQueueSize)
		assert.False(t, doc.CreatedAt.IsZero())
	})

	t.Run("rejects empty player ID", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewQueueDocument("  ")
		assert.ErrorIs(t, err, domain.ErrPlayerIDEmpty)
	})
}

func TestTaskValidate(t *testing.T) {
	t.Parallel()

	valid := domain.Task{
		ID:       "task-1",
		Type:     domain.TaskTypeHarvesting,
		Duration: time.Minute,
		Priority: 5,
	}

	tests := []struct {
		name    string
		modify  func(*domain.Task)
		wantErr error
	}{
		{
			name:    "valid task",
			modify:  func(*domain.Task) {},
			wantErr: nil,
		},
		{
			name:    "empty ID",
			modify:  func(task *domain.Task) { task.ID = "" },
			wantErr: domain.ErrTaskIDEmpty,
		},
		{
			name:    "unknown type",
			modify:  func(task *domain.Task) { task.Type = "fishing" },
			wantErr: domain.ErrInvalidTaskType,
		},
		{
			name:    "zero duration",
			modify:  func(task *domain.Task) { task.Duration = 0 },
			wantErr: domain.ErrInvalidDuration,
		},
		{
			name:    "duration above ceiling",
			modify:  func(task *domain.Task) { task.Duration = 25 * time.Hour },
			wantErr: domain.ErrInvalidDuration,
		},
		{
			name:    "priority out of range",
			modify:  func(task *domain.Task) { task.Priority = 11 },
			wantErr: domain.ErrInvalidPriority,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			task := valid.Clone()
			tt.modify(&task)

			err := task.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	doc, err := domain.NewQueueDocument("player-1")
	require.NoError(t, err)

	doc.QueuedTasks = append(doc.QueuedTasks, domain.Task{
		ID:       "task-1",
		Type:     domain.TaskTypeCrafting,
		Duration: time.Minute,
	})
	current := domain.Task{ID: "task-0", Type: domain.TaskTypeCombat, Duration: time.Minute}
	doc.CurrentTask = &current

	clone := doc.Clone()
	clone.QueuedTasks[0].ID = "changed"
	clone.CurrentTask.ID = "changed"

	assert.Equal(t, "task-1", doc.QueuedTasks[0].ID)
	assert.Equal(t, "task-0", doc.CurrentTask.ID)
}

func TestRecordTransitionBoundsHistory(t *testing.T) {
	t.Parallel()

	doc, err := domain.NewQueueDocument("player-1")
	require.NoError(t, err)
	doc.Config.MaxHistorySize = 3

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		doc.RecordTransition("a", "b", "op", now)
	}

	assert.Len(t, doc.StateHistory, 3)
}

func TestPromoteNextTask(t *testing.T) {
	t.Parallel()

	doc, err := domain.NewQueueDocument("player-1")
	require.NoError(t, err)

	now := time.Now().UTC()

	t.Run("empty queue clears current task", func(t *testing.T) {
		promoted := doc.PromoteNextTask(now)
		assert.False(t, promoted)
		assert.Nil(t, doc.CurrentTask)
	})

	t.Run("head of queue becomes current", func(t *testing.T) {
		doc.QueuedTasks = []domain.Task{
			{ID: "first", Type: domain.TaskTypeHarvesting, Duration: time.Minute},
			{ID: "second", Type: domain.TaskTypeCrafting, Duration: time.Minute},
		}

		promoted := doc.PromoteNextTask(now)
		require.True(t, promoted)
		require.NotNil(t, doc.CurrentTask)
		assert.Equal(t, "first", doc.CurrentTask.ID)
		assert.Equal(t, now, doc.CurrentTask.StartTime)
		assert.Len(t, doc.QueuedTasks, 1)
		assert.Equal(t, "second", doc.QueuedTasks[0].ID)
	})
}

func TestApplyCompletionAccumulatesStats(t *testing.T) {
	t.Parallel()

	doc, err := domain.NewQueueDocument("player-1")
	require.NoError(t, err)

	now := time.Now().UTC()
	first := domain.Task{ID: "task-1", Type: domain.TaskTypeHarvesting, Duration: time.Minute, StartTime: now}
	doc.CurrentTask = &first

	doc.ApplyCompletion(doc.CurrentTask, now.Add(time.Minute))

	assert.True(t, doc.CurrentTask.Completed)
	assert.Equal(t, int64(1), doc.TotalTasksCompleted)
	assert.Equal(t, time.Minute, doc.TotalTimeSpent)
	assert.Equal(t, time.Minute, doc.AverageTaskDuration)
	assert.InDelta(t, 1.0, doc.TaskCompletionRate, 1e-9)
	assert.GreaterOrEqual(t, doc.QueueEfficiencyScore, 0.0)
	assert.LessOrEqual(t, doc.QueueEfficiencyScore, 1.0)

	second := domain.Task{ID: "task-2", Type: domain.TaskTypeCombat, Duration: 3 * time.Minute, StartTime: now}
	doc.CurrentTask = &second
	doc.ApplyCompletion(doc.CurrentTask, now.Add(4*time.Minute))

	assert.Equal(t, int64(2), doc.TotalTasksCompleted)
	assert.Equal(t, 4*time.Minute, doc.TotalTimeSpent)
	assert.Equal(t, 2*time.Minute, doc.AverageTaskDuration)
}
