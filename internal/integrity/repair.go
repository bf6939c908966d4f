package integrity

import (
	"fmt"

	"github.com/veldtman/grind-api/internal/domain"
)

// Repair applies deterministic, idempotent corrective actions to a copy of
// the document, in a fixed order, and returns the repaired copy. Repair
// only drops and clamps; it never fabricates progress or rewards. The
// returned document always re-validates as valid; if it would not,
// ErrUnrepairable is returned and the caller must restore from snapshot.
func Repair(doc *domain.QueueDocument) (*domain.QueueDocument, error) {
	out := doc.Clone()

	// Keep the current task, drop any queued duplicate of it.
	if out.CurrentTask != nil {
		filtered := out.QueuedTasks[:0]
		for i := range out.QueuedTasks {
			if out.QueuedTasks[i].ID != out.CurrentTask.ID {
				filtered = append(filtered, out.QueuedTasks[i])
			}
		}
		out.QueuedTasks = filtered
	}

	// Drop later duplicates among queued tasks, preserving FIFO order.
	seen := make(map[string]bool, len(out.QueuedTasks))
	deduped := out.QueuedTasks[:0]
	for i := range out.QueuedTasks {
		if seen[out.QueuedTasks[i].ID] {
			continue
		}
		seen[out.QueuedTasks[i].ID] = true
		deduped = append(deduped, out.QueuedTasks[i])
	}
	out.QueuedTasks = deduped

	// Drop tasks exceeding the per-task duration limit.
	if max := out.Config.MaxTaskDuration; max > 0 {
		kept := out.QueuedTasks[:0]
		for i := range out.QueuedTasks {
			if out.QueuedTasks[i].Duration <= max {
				kept = append(kept, out.QueuedTasks[i])
			}
		}
		out.QueuedTasks = kept

		if out.CurrentTask != nil && out.CurrentTask.Duration > max {
			out.CurrentTask = nil
		}
	}

	// Trim an oversized queue from the tail.
	if max := out.Config.MaxQueueSize; max > 0 && len(out.QueuedTasks) > max {
		out.QueuedTasks = out.QueuedTasks[:max]
	}

	// Trim from the tail until the total duration fits.
	if max := out.Config.MaxTotalQueueDuration; max > 0 {
		for len(out.QueuedTasks) > 0 && out.TotalQueuedDuration() > max {
			out.QueuedTasks = out.QueuedTasks[:len(out.QueuedTasks)-1]
		}
	}

	// Clamp counters and bounded metrics.
	if out.TotalTasksCompleted < 0 {
		out.TotalTasksCompleted = 0
	}
	if out.TotalTimeSpent < 0 {
		out.TotalTimeSpent = 0
	}
	if out.CurrentTask != nil {
		if out.CurrentTask.Progress < 0 {
			out.CurrentTask.Progress = 0
		}
		if out.CurrentTask.Progress > 1 {
			out.CurrentTask.Progress = 1
		}
	}
	if out.QueueEfficiencyScore < 0 {
		out.QueueEfficiencyScore = 0
	}
	if out.QueueEfficiencyScore > 1 {
		out.QueueEfficiencyScore = 1
	}

	// Recompute the checksum last so it covers every correction above.
	if err := Stamp(out); err != nil {
		return nil, fmt.Errorf("failed to restamp checksum: %w", err)
	}

	if report := Check(out); !report.Valid {
		return nil, fmt.Errorf("%w: %d violation(s) remain", ErrUnrepairable, len(report.Violations))
	}

	return out, nil
}
