package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TaskType identifies the category of work a task performs.
type TaskType string

// Known task types.
const (
	TaskTypeHarvesting TaskType = "harvesting"
	TaskTypeCrafting   TaskType = "crafting"
	TaskTypeCombat     TaskType = "combat"
)

// Task limits enforced by validation regardless of per-queue configuration.
const (
	// MaxTaskDurationCeiling is the absolute upper bound on a single task's
	// duration. Per-queue configuration may lower it but never raise it.
	MaxTaskDurationCeiling = 24 * time.Hour

	// MaxTaskPriority is the highest accepted task priority.
	MaxTaskPriority = 10
)

// IsValidTaskType reports whether t is one of the known work categories.
func IsValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeHarvesting, TaskTypeCrafting, TaskTypeCombat:
		return true
	}
	return false
}

// Task represents one unit of long-running work in a player's queue.
// Rewards are opaque to this core; they are computed and interpreted by
// the game-rules collaborators.
type Task struct {
	ID               string          `json:"id"`
	Type             TaskType        `json:"type"`
	Duration         time.Duration   `json:"duration"`
	StartTime        time.Time       `json:"start_time"`
	Progress         float64         `json:"progress"`
	Completed        bool            `json:"completed"`
	Rewards          json.RawMessage `json:"rewards,omitempty"`
	Priority         int             `json:"priority"`
	RetryCount       int             `json:"retry_count"`
	MaxRetries       int             `json:"max_retries"`
	IsValid          bool            `json:"is_valid"`
	ValidationErrors []string        `json:"validation_errors,omitempty"`
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrTaskIDEmpty
	}

	if !IsValidTaskType(t.Type) {
		return ErrInvalidTaskType
	}

	if t.Duration <= 0 || t.Duration > MaxTaskDurationCeiling {
		return ErrInvalidDuration
	}

	if t.Priority < 0 || t.Priority > MaxTaskPriority {
		return ErrInvalidPriority
	}

	return nil
}

// Started reports whether the task has begun executing.
func (t *Task) Started() bool {
	return !t.StartTime.IsZero()
}

// Deadline returns the instant the task finishes, assuming it started.
// The zero time is returned for tasks that have not started.
func (t *Task) Deadline() time.Time {
	if !t.Started() {
		return time.Time{}
	}
	return t.StartTime.Add(t.Duration)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() Task {
	out := *t
	if t.Rewards != nil {
		out.Rewards = append(json.RawMessage(nil), t.Rewards...)
	}
	if t.ValidationErrors != nil {
		out.ValidationErrors = append([]string(nil), t.ValidationErrors...)
	}
	return out
}
