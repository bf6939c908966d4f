package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veldtman/grind-api/internal/atomicops"
	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/security"
	"github.com/veldtman/grind-api/internal/store"
)

// Notifier pushes state changes to live client connections. The realtime
// hub implements it; tests substitute a recorder.
type Notifier interface {
	NotifyQueueChanged(doc *domain.QueueDocument)
}

// QueueService is the application-level entry point for every queue
// operation. All mutations pass through the security envelope before the
// atomic operations manager touches the document.
type QueueService struct {
	atomic    *atomicops.Manager
	queues    store.QueueStore
	validator *security.Validator
	limiter   *security.RateLimiter
	audit     *security.AuditLogger
	notifier  Notifier
	logger    *slog.Logger
}

// NewQueueService wires the service. notifier may be nil when no live
// connection layer is running.
func NewQueueService(
	atomic *atomicops.Manager,
	queues store.QueueStore,
	validator *security.Validator,
	limiter *security.RateLimiter,
	audit *security.AuditLogger,
	notifier Notifier,
	logger *slog.Logger,
) *QueueService {
	if logger == nil {
		logger = slog.Default()
	}

	return &QueueService{
		atomic:    atomic,
		queues:    queues,
		validator: validator,
		limiter:   limiter,
		audit:     audit,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "queue_service")),
	}
}

// AddTask validates and submits one task for the player. The player's queue
// document is created on first submission.
func (s *QueueService) AddTask(ctx context.Context, playerID string, input security.TaskInput) (*domain.QueueDocument, error) {
	if err := s.allow(ctx, playerID, security.OpClassMutate, "add_task"); err != nil {
		return nil, err
	}

	task, err := s.validateTask(ctx, playerID, input)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, playerID, playerID, atomicops.AddTask{Task: task})
}

// RemoveTask deletes a task from the player's queue. Removing an absent
// task completes as a no-op.
func (s *QueueService) RemoveTask(ctx context.Context, playerID, taskID string) (*domain.QueueDocument, error) {
	if err := s.allow(ctx, playerID, security.OpClassMutate, "remove_task"); err != nil {
		return nil, err
	}
	return s.execute(ctx, playerID, playerID, atomicops.RemoveTask{TaskID: taskID})
}

// UpdateProgress sets the in-flight task's progress.
func (s *QueueService) UpdateProgress(ctx context.Context, playerID, taskID string, progress float64) (*domain.QueueDocument, error) {
	if err := s.allow(ctx, playerID, security.OpClassMutate, "update_progress"); err != nil {
		return nil, err
	}
	return s.execute(ctx, playerID, playerID, atomicops.UpdateProgress{TaskID: taskID, Progress: progress})
}

// CompleteTask finishes the in-flight task and promotes the next one.
func (s *QueueService) CompleteTask(ctx context.Context, playerID, taskID string) (*domain.QueueDocument, error) {
	if err := s.allow(ctx, playerID, security.OpClassMutate, "complete_task"); err != nil {
		return nil, err
	}
	return s.execute(ctx, playerID, playerID, atomicops.CompleteTask{TaskID: taskID})
}

// StopAllTasks halts the player's queue and discards pending work.
func (s *QueueService) StopAllTasks(ctx context.Context, playerID string) (*domain.QueueDocument, error) {
	if err := s.allow(ctx, playerID, security.OpClassMutate, "stop_all_tasks"); err != nil {
		return nil, err
	}
	return s.execute(ctx, playerID, playerID, atomicops.StopAll{})
}

// ReorderTasks rearranges the queued tasks into the given ID order.
func (s *QueueService) ReorderTasks(ctx context.Context, playerID string, taskIDs []string) (*domain.QueueDocument, error) {
	if err := s.allow(ctx, playerID, security.OpClassMutate, "reorder_tasks"); err != nil {
		return nil, err
	}
	return s.execute(ctx, playerID, playerID, atomicops.ReorderTasks{TaskIDs: taskIDs})
}

// BatchOperations executes several operations within a single lock/version
// cycle: the batch either fully applies or fully fails. The whole batch
// consumes one rate-limit slot.
func (s *QueueService) BatchOperations(ctx context.Context, playerID string, ops []BatchOperation) (*domain.QueueDocument, error) {
	if err := s.allow(ctx, playerID, security.OpClassMutate, "batch"); err != nil {
		return nil, err
	}

	batch, err := s.buildBatch(ctx, playerID, ops)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, playerID, playerID, batch)
}

// QueueStatus is the lock-free read of the player's current document.
func (s *QueueService) QueueStatus(ctx context.Context, playerID string) (*domain.QueueDocument, error) {
	if err := s.allow(ctx, playerID, security.OpClassRead, "queue_status"); err != nil {
		return nil, err
	}
	return s.queues.Get(ctx, playerID)
}

// AdminModifyQueue applies a batch of operations to another player's queue
// on behalf of an admin. Admin actions are rate limited against the admin's
// identity and audited distinctly from player-initiated operations.
func (s *QueueService) AdminModifyQueue(ctx context.Context, adminID string, adminLevel int, playerID string, ops []BatchOperation) (*domain.QueueDocument, error) {
	if adminLevel <= 0 {
		return nil, domain.ErrUnauthorized
	}

	if err := s.allow(ctx, adminID, security.OpClassAdmin, "modify_player_queue"); err != nil {
		return nil, err
	}

	batch, err := s.buildBatch(ctx, playerID, ops)
	if err != nil {
		return nil, err
	}

	doc, err := s.atomic.Execute(ctx, playerID, batch)
	if err != nil {
		s.audit.RecordAdmin(ctx, "modify_player_queue", adminID, playerID, adminLevel, false, err.Error())
		return nil, err
	}
	s.audit.RecordAdmin(ctx, "modify_player_queue", adminID, playerID, adminLevel, true, "")

	if s.notifier != nil {
		s.notifier.NotifyQueueChanged(doc)
	}
	return doc, nil
}

func (s *QueueService) allow(ctx context.Context, subjectID string, class security.OperationClass, op string) error {
	decision := s.limiter.Allow(subjectID, class)
	if decision.Allowed {
		return nil
	}

	s.audit.RecordOperation(ctx, "rate_limit_exceeded", subjectID, subjectID, false, op)
	if s.limiter.DetectSuspiciousActivity(subjectID) {
		s.logger.Warn("suspicious operation rate",
			slog.String("player_id", subjectID),
			slog.String("operation", op))
	}
	return &RateLimitError{RetryAfter: decision.RetryAfter}
}

func (s *QueueService) validateTask(ctx context.Context, playerID string, input security.TaskInput) (domain.Task, error) {
	result := s.validator.ValidateTask(input)
	if !result.IsValid {
		detail := strings.Join(result.Errors, "; ")
		s.audit.RecordOperation(ctx, "validation_failure", playerID, playerID, false, detail)
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrValidation, detail)
	}

	in := result.Sanitized
	return domain.Task{
		ID:         in.ID,
		Type:       domain.TaskType(in.Type),
		Duration:   in.Duration(),
		Priority:   in.Priority,
		Rewards:    in.Rewards,
		MaxRetries: domain.DefaultMaxRetries,
	}, nil
}

func (s *QueueService) execute(ctx context.Context, playerID, actorID string, cmd atomicops.Command) (*domain.QueueDocument, error) {
	doc, err := s.atomic.Execute(ctx, playerID, cmd)
	if err != nil {
		s.audit.RecordOperation(ctx, cmd.Name(), actorID, playerID, false, err.Error())
		return nil, err
	}
	s.audit.RecordOperation(ctx, cmd.Name(), actorID, playerID, true, "")

	if s.notifier != nil {
		s.notifier.NotifyQueueChanged(doc)
	}
	return doc, nil
}
