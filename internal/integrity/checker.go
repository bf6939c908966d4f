package integrity

import (
	"errors"
	"fmt"

	"github.com/veldtman/grind-api/internal/domain"
)

// ErrUnrepairable is returned by Repair when no deterministic correction
// can bring the document back to a valid state. The caller must fall back
// to snapshot restore.
var ErrUnrepairable = errors.New("document cannot be repaired")

// Severity classifies a violation: critical violations block normal
// operation, warnings are logged but not blocking.
type Severity string

// Violation severities.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Violation codes.
const (
	CodeQueueOverCapacity    = "queue_over_capacity"
	CodeTaskDurationExceeded = "task_duration_exceeded"
	CodeTotalDurationOver    = "total_duration_exceeded"
	CodeChecksumMismatch     = "checksum_mismatch"
	CodeCurrentTaskDuplicate = "current_task_in_queue"
	CodeDuplicateTaskIDs     = "duplicate_task_ids"
	CodeNegativeCounters     = "negative_counters"
	CodeProgressOutOfRange   = "progress_out_of_range"
	CodeEfficiencyOutOfRange = "efficiency_out_of_range"
	CodeRunningWhilePaused   = "running_while_paused"
)

// Violation describes one invariant breach found by Check.
type Violation struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Report is the result of validating a queue document.
type Report struct {
	Valid          bool        `json:"valid"`
	Violations     []Violation `json:"violations,omitempty"`
	Warnings       []Violation `json:"warnings,omitempty"`
	IntegrityScore float64     `json:"integrity_score"`
	CanRepair      bool        `json:"can_repair"`
	RepairActions  []string    `json:"repair_actions,omitempty"`
}

// Check validates the document against its structural invariants and
// returns a classified report. Version monotonicity is enforced by the
// store's conditional write and therefore cannot be checked statically
// here; everything else from the invariant list is.
func Check(doc *domain.QueueDocument) Report {
	var critical, warnings []Violation
	var actions []string

	if max := doc.Config.MaxQueueSize; max > 0 && len(doc.QueuedTasks) > max {
		critical = append(critical, Violation{
			Code:     CodeQueueOverCapacity,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("queue holds %d tasks, limit is %d", len(doc.QueuedTasks), max),
		})
		actions = append(actions, "trim queued tasks from the tail")
	}

	overDuration := 0
	for i := range doc.QueuedTasks {
		if doc.Config.MaxTaskDuration > 0 && doc.QueuedTasks[i].Duration > doc.Config.MaxTaskDuration {
			overDuration++
		}
	}
	if doc.CurrentTask != nil && doc.Config.MaxTaskDuration > 0 &&
		doc.CurrentTask.Duration > doc.Config.MaxTaskDuration {
		overDuration++
	}
	if overDuration > 0 {
		critical = append(critical, Violation{
			Code:     CodeTaskDurationExceeded,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%d task(s) exceed the per-task duration limit", overDuration),
		})
		actions = append(actions, "drop tasks exceeding the duration limit")
	}

	if max := doc.Config.MaxTotalQueueDuration; max > 0 && doc.TotalQueuedDuration() > max {
		critical = append(critical, Violation{
			Code:     CodeTotalDurationOver,
			Severity: SeverityCritical,
			Message:  "summed task durations exceed the total queue duration limit",
		})
		actions = append(actions, "trim queued tasks from the tail")
	}

	if sum, err := Checksum(doc); err == nil && doc.Checksum != "" && doc.Checksum != sum {
		critical = append(critical, Violation{
			Code:     CodeChecksumMismatch,
			Severity: SeverityCritical,
			Message:  "stored checksum does not match recomputed content digest",
		})
		actions = append(actions, "recompute checksum")
	}

	if doc.CurrentTask != nil && doc.FindQueuedTask(doc.CurrentTask.ID) >= 0 {
		critical = append(critical, Violation{
			Code:     CodeCurrentTaskDuplicate,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("task %q is both current and queued", doc.CurrentTask.ID),
		})
		actions = append(actions, "drop queued duplicate of the current task")
	}

	seen := make(map[string]bool, len(doc.QueuedTasks))
	duplicates := 0
	for i := range doc.QueuedTasks {
		if seen[doc.QueuedTasks[i].ID] {
			duplicates++
		}
		seen[doc.QueuedTasks[i].ID] = true
	}
	if duplicates > 0 {
		critical = append(critical, Violation{
			Code:     CodeDuplicateTaskIDs,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("%d duplicated task ID(s) in the queue", duplicates),
		})
		actions = append(actions, "drop later duplicates of queued tasks")
	}

	if doc.TotalTasksCompleted < 0 || doc.TotalTimeSpent < 0 {
		critical = append(critical, Violation{
			Code:     CodeNegativeCounters,
			Severity: SeverityCritical,
			Message:  "aggregate counters must never decrease below zero",
		})
		actions = append(actions, "clamp negative counters to zero")
	}

	if doc.CurrentTask != nil && (doc.CurrentTask.Progress < 0 || doc.CurrentTask.Progress > 1) {
		warnings = append(warnings, Violation{
			Code:     CodeProgressOutOfRange,
			Severity: SeverityWarning,
			Message:  "current task progress is outside [0,1]",
		})
		actions = append(actions, "clamp current task progress")
	}

	if doc.QueueEfficiencyScore < 0 || doc.QueueEfficiencyScore > 1 {
		warnings = append(warnings, Violation{
			Code:     CodeEfficiencyOutOfRange,
			Severity: SeverityWarning,
			Message:  "queue efficiency score is outside [0,1]",
		})
		actions = append(actions, "clamp queue efficiency score")
	}

	if doc.IsRunning && doc.IsPaused {
		warnings = append(warnings, Violation{
			Code:     CodeRunningWhilePaused,
			Severity: SeverityWarning,
			Message:  "queue is flagged both running and paused",
		})
	}

	score := 1.0 - 0.25*float64(len(critical)) - 0.05*float64(len(warnings))
	if score < 0 {
		score = 0
	}

	return Report{
		Valid:          len(critical) == 0,
		Violations:     critical,
		Warnings:       warnings,
		IntegrityScore: score,
		CanRepair:      len(actions) > 0,
		RepairActions:  actions,
	}
}
