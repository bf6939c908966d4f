// Package integrity computes content checksums for queue documents,
// validates their structural invariants, and produces repaired documents
// when a deterministic correction exists.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veldtman/grind-api/internal/domain"
)

// checksumPayload is the canonical subset of a queue document covered by
// the content checksum. Version, timestamps, and the diagnostic state
// history are deliberately excluded: the checksum detects corruption and
// tampering of business state independent of the version counter.
type checksumPayload struct {
	PlayerID             string               `json:"player_id"`
	CurrentTask          *domain.Task         `json:"current_task"`
	QueuedTasks          []domain.Task        `json:"queued_tasks"`
	IsRunning            bool                 `json:"is_running"`
	IsPaused             bool                 `json:"is_paused"`
	TotalTasksCompleted  int64                `json:"total_tasks_completed"`
	TotalTimeSpent       time.Duration        `json:"total_time_spent"`
	AverageTaskDuration  time.Duration        `json:"average_task_duration"`
	TaskCompletionRate   float64              `json:"task_completion_rate"`
	QueueEfficiencyScore float64              `json:"queue_efficiency_score"`
	Config               domain.QueueConfig   `json:"config"`
}

// Checksum returns the hex-encoded SHA-256 digest over the document's
// checksummed fields. Struct field order makes the JSON encoding
// deterministic, so equal business state always hashes equally.
func Checksum(doc *domain.QueueDocument) (string, error) {
	payload := checksumPayload{
		PlayerID:             doc.PlayerID,
		CurrentTask:          doc.CurrentTask,
		QueuedTasks:          doc.QueuedTasks,
		IsRunning:            doc.IsRunning,
		IsPaused:             doc.IsPaused,
		TotalTasksCompleted:  doc.TotalTasksCompleted,
		TotalTimeSpent:       doc.TotalTimeSpent,
		AverageTaskDuration:  doc.AverageTaskDuration,
		TaskCompletionRate:   doc.TaskCompletionRate,
		QueueEfficiencyScore: doc.QueueEfficiencyScore,
		Config:               doc.Config,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode checksum payload: %w", err)
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Stamp recomputes the document's checksum in place.
func Stamp(doc *domain.QueueDocument) error {
	sum, err := Checksum(doc)
	if err != nil {
		return err
	}
	doc.Checksum = sum
	return nil
}
