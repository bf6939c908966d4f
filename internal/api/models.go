package api

import (
	"time"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/security"
	"github.com/veldtman/grind-api/internal/service"
)

// AddTaskRequest is the body of POST /queue/{playerID}/tasks.
type AddTaskRequest struct {
	Task security.TaskInput `json:"task" validate:"required"`
}

// ProgressRequest is the body of the task progress endpoint.
type ProgressRequest struct {
	Progress float64 `json:"progress" validate:"gte=0,lte=1"`
}

// BatchRequest is the body of POST /queue/{playerID}/batch.
type BatchRequest struct {
	Operations []service.BatchOperation `json:"operations" validate:"required,min=1,max=20"`
}

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	PlayerID    string   `json:"player_id" validate:"required,max=64"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,oneof=queue:read queue:write queue:admin"`
}

// TokenResponse carries an issued session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// RevokeRequest is the body of POST /auth/revoke.
type RevokeRequest struct {
	Token string `json:"token,omitempty"`
	All   bool   `json:"all,omitempty"`
}

// QueueResponse is the client-facing shape of a queue document.
type QueueResponse struct {
	PlayerID string `json:"player_id"`
	Version  int64  `json:"version"`
	Checksum string `json:"checksum"`

	CurrentTask *domain.Task  `json:"current_task,omitempty"`
	QueuedTasks []domain.Task `json:"queued_tasks"`

	IsRunning bool `json:"is_running"`
	IsPaused  bool `json:"is_paused"`

	TotalTasksCompleted  int64   `json:"total_tasks_completed"`
	TotalTimeSpentMs     int64   `json:"total_time_spent_ms"`
	AverageTaskMs        int64   `json:"average_task_duration_ms"`
	TaskCompletionRate   float64 `json:"task_completion_rate"`
	QueueEfficiencyScore float64 `json:"queue_efficiency_score"`

	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

func queueToResponse(doc *domain.QueueDocument) QueueResponse {
	queued := doc.QueuedTasks
	if queued == nil {
		queued = []domain.Task{}
	}

	return QueueResponse{
		PlayerID:             doc.PlayerID,
		Version:              doc.Version,
		Checksum:             doc.Checksum,
		CurrentTask:          doc.CurrentTask,
		QueuedTasks:          queued,
		IsRunning:            doc.IsRunning,
		IsPaused:             doc.IsPaused,
		TotalTasksCompleted:  doc.TotalTasksCompleted,
		TotalTimeSpentMs:     doc.TotalTimeSpent.Milliseconds(),
		AverageTaskMs:        doc.AverageTaskDuration.Milliseconds(),
		TaskCompletionRate:   doc.TaskCompletionRate,
		QueueEfficiencyScore: doc.QueueEfficiencyScore,
		LastUpdated:          doc.LastUpdated,
		CreatedAt:            doc.CreatedAt,
	}
}
