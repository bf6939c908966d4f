package domain

import (
	"strings"
	"time"
)

// Default queue configuration values applied to newly created documents.
const (
	DefaultMaxQueueSize     = 10
	DefaultMaxTaskDuration  = 8 * time.Hour
	DefaultMaxTotalDuration = 24 * time.Hour
	DefaultMaxRetries       = 3
	DefaultMaxHistorySize   = 50
	DefaultMaxSnapshots     = 10

	DefaultSyncInterval           = 5 * time.Second
	DefaultPersistInterval        = 30 * time.Second
	DefaultIntegrityCheckInterval = 5 * time.Minute
)

// QueueConfig holds the structural limits for a single player's queue.
type QueueConfig struct {
	MaxQueueSize           int           `json:"max_queue_size"`
	MaxTaskDuration        time.Duration `json:"max_task_duration"`
	MaxTotalQueueDuration  time.Duration `json:"max_total_queue_duration"`
	MaxRetries             int           `json:"max_retries"`
	MaxHistorySize         int           `json:"max_history_size"`
	MaxSnapshots           int           `json:"max_snapshots"`
	SyncInterval           time.Duration `json:"sync_interval"`
	PersistInterval        time.Duration `json:"persist_interval"`
	IntegrityCheckInterval time.Duration `json:"integrity_check_interval"`
}

// DefaultQueueConfig returns the configuration applied to a queue created
// on a player's first task submission.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxQueueSize:           DefaultMaxQueueSize,
		MaxTaskDuration:        DefaultMaxTaskDuration,
		MaxTotalQueueDuration:  DefaultMaxTotalDuration,
		MaxRetries:             DefaultMaxRetries,
		MaxHistorySize:         DefaultMaxHistorySize,
		MaxSnapshots:           DefaultMaxSnapshots,
		SyncInterval:           DefaultSyncInterval,
		PersistInterval:        DefaultPersistInterval,
		IntegrityCheckInterval: DefaultIntegrityCheckInterval,
	}
}

// StateTransition records one observable change in a queue's lifecycle.
// Transitions are diagnostic data for the repair tooling; business logic
// never reads them.
type StateTransition struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Operation  string    `json:"operation"`
	OccurredAt time.Time `json:"occurred_at"`
}

// QueueDocument is the versioned per-player record holding current and
// queued tasks plus aggregate statistics. It is the unit of atomicity:
// every mutation flows through the atomic operations manager and bumps
// Version by exactly one.
type QueueDocument struct {
	PlayerID string `json:"player_id"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`

	CurrentTask *Task  `json:"current_task,omitempty"`
	QueuedTasks []Task `json:"queued_tasks"`

	IsRunning bool `json:"is_running"`
	IsPaused  bool `json:"is_paused"`

	TotalTasksCompleted  int64         `json:"total_tasks_completed"`
	TotalTimeSpent       time.Duration `json:"total_time_spent"`
	AverageTaskDuration  time.Duration `json:"average_task_duration"`
	TaskCompletionRate   float64       `json:"task_completion_rate"`
	QueueEfficiencyScore float64       `json:"queue_efficiency_score"`

	Config QueueConfig `json:"config"`

	StateHistory []StateTransition `json:"state_history,omitempty"`

	LastUpdated   time.Time `json:"last_updated"`
	LastSynced    time.Time `json:"last_synced"` // stamped via QueueStore.MarkSynced, never by mutations
	LastValidated time.Time `json:"last_validated"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewQueueDocument creates an empty queue document for the given player.
// Version starts at zero; the first persisted write stores version one.
func NewQueueDocument(playerID string) (*QueueDocument, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, ErrPlayerIDEmpty
	}

	now := time.Now().UTC()
	return &QueueDocument{
		PlayerID:    playerID,
		Version:     0,
		QueuedTasks: []Task{},
		IsRunning:   true,
		Config:      DefaultQueueConfig(),
		LastUpdated: now,
		CreatedAt:   now,
	}, nil
}

// Clone returns a deep copy of the document so a caller can mutate it
// without affecting the original.
func (d *QueueDocument) Clone() *QueueDocument {
	out := *d
	if d.CurrentTask != nil {
		ct := d.CurrentTask.Clone()
		out.CurrentTask = &ct
	}
	out.QueuedTasks = make([]Task, 0, len(d.QueuedTasks))
	for i := range d.QueuedTasks {
		out.QueuedTasks = append(out.QueuedTasks, d.QueuedTasks[i].Clone())
	}
	if d.StateHistory != nil {
		out.StateHistory = append([]StateTransition(nil), d.StateHistory...)
	}
	return &out
}

// TotalQueuedDuration returns the summed duration of the current task and
// every queued task.
func (d *QueueDocument) TotalQueuedDuration() time.Duration {
	var total time.Duration
	if d.CurrentTask != nil {
		total += d.CurrentTask.Duration
	}
	for i := range d.QueuedTasks {
		total += d.QueuedTasks[i].Duration
	}
	return total
}

// FindQueuedTask returns the index of the queued task with the given ID,
// or -1 when no such task is queued.
func (d *QueueDocument) FindQueuedTask(taskID string) int {
	for i := range d.QueuedTasks {
		if d.QueuedTasks[i].ID == taskID {
			return i
		}
	}
	return -1
}

// RecordTransition appends a state transition to the bounded history ring,
// evicting the oldest entry when the cap is reached.
func (d *QueueDocument) RecordTransition(from, to, operation string, at time.Time) {
	max := d.Config.MaxHistorySize
	if max <= 0 {
		max = DefaultMaxHistorySize
	}

	d.StateHistory = append(d.StateHistory, StateTransition{
		From:       from,
		To:         to,
		Operation:  operation,
		OccurredAt: at,
	})
	if len(d.StateHistory) > max {
		d.StateHistory = d.StateHistory[len(d.StateHistory)-max:]
	}
}

// PromoteNextTask moves the head of the queued tasks into the current slot,
// stamping its start time. It returns false when no task was waiting.
func (d *QueueDocument) PromoteNextTask(now time.Time) bool {
	if len(d.QueuedTasks) == 0 {
		d.CurrentTask = nil
		return false
	}

	next := d.QueuedTasks[0].Clone()
	next.StartTime = now
	next.Progress = 0
	d.QueuedTasks = d.QueuedTasks[1:]
	d.CurrentTask = &next
	return true
}

// ApplyCompletion folds a finished task into the aggregate statistics and
// marks it completed. Counters only ever grow; the efficiency score is a
// bounded rolling metric.
func (d *QueueDocument) ApplyCompletion(t *Task, now time.Time) {
	t.Completed = true
	t.Progress = 1

	d.TotalTasksCompleted++
	d.TotalTimeSpent += t.Duration
	d.AverageTaskDuration = time.Duration(int64(d.TotalTimeSpent) / d.TotalTasksCompleted)

	attempted := d.TotalTasksCompleted + int64(len(d.QueuedTasks))
	if d.CurrentTask != nil && d.CurrentTask.ID != t.ID {
		attempted++
	}
	d.TaskCompletionRate = float64(d.TotalTasksCompleted) / float64(attempted)

	// Rolling blend: completing tasks nudges the score up, bounded to [0,1].
	d.QueueEfficiencyScore = clamp01(d.QueueEfficiencyScore*0.9 + 0.1)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
