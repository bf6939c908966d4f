package atomicops

import (
	"fmt"
	"time"

	"github.com/veldtman/grind-api/internal/domain"
)

// Command is one mutation step executed atomically against a player's
// document. Representing operations as a small tagged-variant set (rather
// than opaque callbacks) lets the manager log, retry, and validate them
// uniformly.
//
// Apply mutates the working copy and reports whether anything changed.
// An unchanged document is not persisted and does not bump the version.
type Command interface {
	// Name identifies the operation for logging and audit records.
	Name() string

	// Apply runs the mutation against the working copy.
	Apply(doc *domain.QueueDocument, now time.Time) (changed bool, err error)
}

// queueCreator is implemented by commands that may create the player's
// document when none exists yet (a queue is born on first task submission).
type queueCreator interface {
	CreatesQueue() bool
}

// AddTask appends a task to the player's queue, or starts it immediately
// when no task is in flight.
type AddTask struct {
	Task domain.Task
}

// Name implements Command.
func (c AddTask) Name() string { return "add_task" }

// CreatesQueue marks AddTask as the operation that brings a queue into
// existence for a new player.
func (c AddTask) CreatesQueue() bool { return true }

// Apply implements Command.
func (c AddTask) Apply(doc *domain.QueueDocument, now time.Time) (bool, error) {
	task := c.Task.Clone()
	if err := task.Validate(); err != nil {
		return false, err
	}
	if max := doc.Config.MaxTaskDuration; max > 0 && task.Duration > max {
		return false, domain.ErrInvalidDuration
	}
	if doc.CurrentTask != nil && doc.CurrentTask.ID == task.ID {
		return false, fmt.Errorf("%w: task %q already in flight", domain.ErrValidation, task.ID)
	}
	if doc.FindQueuedTask(task.ID) >= 0 {
		return false, fmt.Errorf("%w: task %q already queued", domain.ErrValidation, task.ID)
	}
	if max := doc.Config.MaxTotalQueueDuration; max > 0 && doc.TotalQueuedDuration()+task.Duration > max {
		return false, domain.ErrQueueDurationExceeded
	}

	task.IsValid = true

	if doc.CurrentTask == nil && !doc.IsPaused {
		task.StartTime = now
		doc.CurrentTask = &task
		doc.RecordTransition("idle", "running", c.Name(), now)
	} else {
		if len(doc.QueuedTasks) >= doc.Config.MaxQueueSize {
			return false, domain.ErrQueueFull
		}
		doc.QueuedTasks = append(doc.QueuedTasks, task)
	}

	// A stopped queue comes back to life on new work.
	doc.IsRunning = true
	return true, nil
}

// RemoveTask deletes a queued task. Removing a task that is already absent
// is a no-op, not an error: a concurrent writer may have gotten there
// first, and both callers observed a valid end state.
type RemoveTask struct {
	TaskID string
}

// Name implements Command.
func (c RemoveTask) Name() string { return "remove_task" }

// Apply implements Command.
func (c RemoveTask) Apply(doc *domain.QueueDocument, now time.Time) (bool, error) {
	if doc.CurrentTask != nil && doc.CurrentTask.ID == c.TaskID {
		doc.CurrentTask = nil
		doc.PromoteNextTask(now)
		doc.RecordTransition("running", "running", c.Name(), now)
		return true, nil
	}

	idx := doc.FindQueuedTask(c.TaskID)
	if idx < 0 {
		return false, nil
	}
	doc.QueuedTasks = append(doc.QueuedTasks[:idx], doc.QueuedTasks[idx+1:]...)
	return true, nil
}

// UpdateProgress sets the in-flight task's progress. Progress on a task
// that is not current is ignored.
type UpdateProgress struct {
	TaskID   string
	Progress float64
}

// Name implements Command.
func (c UpdateProgress) Name() string { return "update_progress" }

// Apply implements Command.
func (c UpdateProgress) Apply(doc *domain.QueueDocument, now time.Time) (bool, error) {
	if c.Progress < 0 || c.Progress > 1 {
		return false, fmt.Errorf("%w: progress must be within [0,1]", domain.ErrValidation)
	}
	if doc.CurrentTask == nil || doc.CurrentTask.ID != c.TaskID {
		return false, nil
	}
	if doc.CurrentTask.Progress == c.Progress {
		return false, nil
	}
	doc.CurrentTask.Progress = c.Progress
	return true, nil
}

// CompleteTask finishes the in-flight task, folds it into the aggregate
// statistics, and promotes the next queued task.
type CompleteTask struct {
	TaskID string
}

// Name implements Command.
func (c CompleteTask) Name() string { return "complete_task" }

// Apply implements Command.
func (c CompleteTask) Apply(doc *domain.QueueDocument, now time.Time) (bool, error) {
	if doc.CurrentTask == nil || doc.CurrentTask.ID != c.TaskID {
		return false, ErrTaskNotInFlight
	}

	finished := doc.CurrentTask
	doc.ApplyCompletion(finished, now)
	doc.PromoteNextTask(now)
	doc.RecordTransition("running", stateName(doc), c.Name(), now)
	return true, nil
}

// StopAll halts the queue: the in-flight task and all queued tasks are
// discarded and the queue stops advancing. The document itself survives;
// deactivation is expressed through IsRunning, never by deletion.
type StopAll struct{}

// Name implements Command.
func (c StopAll) Name() string { return "stop_all_tasks" }

// Apply implements Command.
func (c StopAll) Apply(doc *domain.QueueDocument, now time.Time) (bool, error) {
	if !doc.IsRunning && doc.CurrentTask == nil && len(doc.QueuedTasks) == 0 {
		return false, nil
	}

	doc.CurrentTask = nil
	doc.QueuedTasks = doc.QueuedTasks[:0]
	doc.IsRunning = false
	doc.IsPaused = false
	doc.RecordTransition("running", "stopped", c.Name(), now)
	return true, nil
}

// ReorderTasks rearranges the queued tasks into the given ID order. Every
// queued task must appear exactly once; the current task is not part of
// the ordering.
type ReorderTasks struct {
	TaskIDs []string
}

// Name implements Command.
func (c ReorderTasks) Name() string { return "reorder_tasks" }

// Apply implements Command.
func (c ReorderTasks) Apply(doc *domain.QueueDocument, now time.Time) (bool, error) {
	if len(c.TaskIDs) != len(doc.QueuedTasks) {
		return false, fmt.Errorf("%w: reorder must name all %d queued tasks",
			domain.ErrValidation, len(doc.QueuedTasks))
	}

	reordered := make([]domain.Task, 0, len(doc.QueuedTasks))
	changed := false
	for i, id := range c.TaskIDs {
		idx := doc.FindQueuedTask(id)
		if idx < 0 {
			return false, fmt.Errorf("%w: task %q is not queued", domain.ErrValidation, id)
		}
		if idx != i {
			changed = true
		}
		reordered = append(reordered, doc.QueuedTasks[idx])
	}

	// Reject duplicated IDs: the rebuilt queue must reference each task once.
	seen := make(map[string]bool, len(c.TaskIDs))
	for _, id := range c.TaskIDs {
		if seen[id] {
			return false, fmt.Errorf("%w: task %q named twice in reorder", domain.ErrValidation, id)
		}
		seen[id] = true
	}

	if !changed {
		return false, nil
	}
	doc.QueuedTasks = reordered
	return true, nil
}

// AdvanceTick is issued by the scheduled tick processor: it updates the
// in-flight task's progress and completes it when its deadline has passed.
type AdvanceTick struct{}

// Name implements Command.
func (c AdvanceTick) Name() string { return "advance_tick" }

// Apply implements Command.
func (c AdvanceTick) Apply(doc *domain.QueueDocument, now time.Time) (bool, error) {
	if !doc.IsRunning || doc.IsPaused {
		return false, nil
	}

	if doc.CurrentTask == nil {
		if doc.PromoteNextTask(now) {
			doc.RecordTransition("idle", "running", c.Name(), now)
			return true, nil
		}
		return false, nil
	}

	task := doc.CurrentTask
	if !task.Started() {
		task.StartTime = now
		return true, nil
	}

	if !now.Before(task.Deadline()) {
		doc.ApplyCompletion(task, now)
		doc.PromoteNextTask(now)
		doc.RecordTransition("running", stateName(doc), c.Name(), now)
		return true, nil
	}

	progress := float64(now.Sub(task.StartTime)) / float64(task.Duration)
	if progress > 1 {
		progress = 1
	}
	if progress == task.Progress {
		return false, nil
	}
	task.Progress = progress
	return true, nil
}

// ReplaceDocument swaps the entire document body for the given source,
// used by snapshot restore. The version deliberately bumps forward rather
// than rewinding, so it stays strictly increasing across a logical rewind.
type ReplaceDocument struct {
	Source *domain.QueueDocument
}

// Name implements Command.
func (c ReplaceDocument) Name() string { return "replace_document" }

// Apply implements Command.
func (c ReplaceDocument) Apply(doc *domain.QueueDocument, now time.Time) (bool, error) {
	if c.Source == nil {
		return false, fmt.Errorf("%w: replacement document is nil", domain.ErrValidation)
	}

	src := c.Source.Clone()
	doc.CurrentTask = src.CurrentTask
	doc.QueuedTasks = src.QueuedTasks
	doc.IsRunning = src.IsRunning
	doc.IsPaused = src.IsPaused
	doc.TotalTasksCompleted = src.TotalTasksCompleted
	doc.TotalTimeSpent = src.TotalTimeSpent
	doc.AverageTaskDuration = src.AverageTaskDuration
	doc.TaskCompletionRate = src.TaskCompletionRate
	doc.QueueEfficiencyScore = src.QueueEfficiencyScore
	doc.Config = src.Config
	doc.StateHistory = src.StateHistory
	doc.RecordTransition("running", "restored", c.Name(), now)
	return true, nil
}

// Batch executes several commands as one atomic unit: all of them apply
// within a single lock/load/validate/save cycle, so a batch either fully
// applies or fully fails.
type Batch struct {
	Commands []Command
}

// Name implements Command.
func (c Batch) Name() string { return "batch" }

// CreatesQueue reports whether any member command may create the queue.
func (c Batch) CreatesQueue() bool {
	for _, cmd := range c.Commands {
		if creator, ok := cmd.(queueCreator); ok && creator.CreatesQueue() {
			return true
		}
	}
	return false
}

// Apply implements Command.
func (c Batch) Apply(doc *domain.QueueDocument, now time.Time) (bool, error) {
	changed := false
	for i, cmd := range c.Commands {
		stepChanged, err := cmd.Apply(doc, now)
		if err != nil {
			return false, fmt.Errorf("batch step %d (%s): %w", i, cmd.Name(), err)
		}
		changed = changed || stepChanged
	}
	return changed, nil
}

func stateName(doc *domain.QueueDocument) string {
	if doc.CurrentTask != nil {
		return "running"
	}
	return "idle"
}
