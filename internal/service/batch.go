package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/veldtman/grind-api/internal/atomicops"
	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/security"
)

// Batch operation kinds accepted from callers.
const (
	BatchOpAdd            = "add_task"
	BatchOpRemove         = "remove_task"
	BatchOpUpdateProgress = "update_progress"
	BatchOpComplete       = "complete_task"
	BatchOpStopAll        = "stop_all_tasks"
	BatchOpReorder        = "reorder_tasks"
)

// BatchOperation is one step of a batch submission. Exactly the fields the
// named operation needs must be set.
type BatchOperation struct {
	Op       string              `json:"op"`
	Task     *security.TaskInput `json:"task,omitempty"`
	TaskID   string              `json:"task_id,omitempty"`
	Progress float64             `json:"progress,omitempty"`
	TaskIDs  []string            `json:"task_ids,omitempty"`
}

// buildBatch validates every step up front and converts the batch into one
// atomic command. A single invalid step rejects the whole batch before any
// lock is taken.
func (s *QueueService) buildBatch(ctx context.Context, playerID string, ops []BatchOperation) (atomicops.Batch, error) {
	if len(ops) == 0 {
		return atomicops.Batch{}, fmt.Errorf("%w: batch is empty", domain.ErrValidation)
	}

	commands := make([]atomicops.Command, 0, len(ops))
	for i, op := range ops {
		switch op.Op {
		case BatchOpAdd:
			if op.Task == nil {
				return atomicops.Batch{}, fmt.Errorf("%w: batch step %d is missing a task", domain.ErrValidation, i)
			}
			result := s.validator.ValidateTask(*op.Task)
			if !result.IsValid {
				detail := strings.Join(result.Errors, "; ")
				s.audit.RecordOperation(ctx, "validation_failure", playerID, playerID, false, detail)
				return atomicops.Batch{}, fmt.Errorf("%w: batch step %d: %s", domain.ErrValidation, i, detail)
			}
			in := result.Sanitized
			commands = append(commands, atomicops.AddTask{Task: domain.Task{
				ID:         in.ID,
				Type:       domain.TaskType(in.Type),
				Duration:   in.Duration(),
				Priority:   in.Priority,
				Rewards:    in.Rewards,
				MaxRetries: domain.DefaultMaxRetries,
			}})

		case BatchOpRemove:
			commands = append(commands, atomicops.RemoveTask{TaskID: op.TaskID})

		case BatchOpUpdateProgress:
			commands = append(commands, atomicops.UpdateProgress{TaskID: op.TaskID, Progress: op.Progress})

		case BatchOpComplete:
			commands = append(commands, atomicops.CompleteTask{TaskID: op.TaskID})

		case BatchOpStopAll:
			commands = append(commands, atomicops.StopAll{})

		case BatchOpReorder:
			commands = append(commands, atomicops.ReorderTasks{TaskIDs: op.TaskIDs})

		default:
			return atomicops.Batch{}, fmt.Errorf("%w: batch step %d has unknown op %q", domain.ErrValidation, i, op.Op)
		}
	}

	return atomicops.Batch{Commands: commands}, nil
}
