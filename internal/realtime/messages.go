package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/veldtman/grind-api/internal/domain"
)

// Inbound message types accepted from clients.
const (
	MsgPing               = "ping"
	MsgHeartbeat          = "heartbeat"
	MsgSyncRequest        = "sync_request"
	MsgDeltaUpdate        = "delta_update"
	MsgConflictResolution = "conflict_resolution"
)

// Outbound message types pushed to clients.
const (
	MsgPong         = "pong"
	MsgHeartbeatAck = "heartbeat_ack"
	MsgDelta        = "queue_delta"
	MsgFullSync     = "queue_snapshot"
	MsgConflict     = "sync_conflict"
	MsgError        = "error"
)

// Conflict categories recorded when client and server state diverge.
const (
	ConflictVersionAhead   = "version_ahead"
	ConflictDivergentDelta = "divergent_delta"
)

// InboundMessage is the envelope for every client-to-server message.
type InboundMessage struct {
	Type string `json:"type"`

	// SentAt is the client's send time in unix milliseconds (ping only).
	SentAt int64 `json:"sent_at,omitempty"`

	// QueueVersion is the client's locally known document version
	// (heartbeat and sync_request).
	QueueVersion int64 `json:"queue_version,omitempty"`

	// Delta carries a client-proposed local change (delta_update). The
	// server never applies it directly; it only checks the base version.
	Delta json.RawMessage `json:"delta,omitempty"`

	// ConflictID acknowledges a previously pushed conflict
	// (conflict_resolution).
	ConflictID string `json:"conflict_id,omitempty"`
}

// OutboundMessage is the envelope for every server-to-client message.
type OutboundMessage struct {
	Type       string          `json:"type"`
	ServerTime int64           `json:"server_time"`
	Version    int64           `json:"version,omitempty"`
	Delta      *QueueDelta     `json:"delta,omitempty"`
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
	Conflict   *ConflictRecord `json:"conflict,omitempty"`
	Error      string          `json:"error,omitempty"`

	// EchoSentAt mirrors the client's ping timestamp so it can compute RTT.
	EchoSentAt int64 `json:"echo_sent_at,omitempty"`
}

// QueueDelta carries the hot document fields a client one version behind
// needs to catch up without a full snapshot.
type QueueDelta struct {
	FromVersion int64        `json:"from_version"`
	ToVersion   int64        `json:"to_version"`
	CurrentTask *domain.Task `json:"current_task"`
	QueuedTasks []string     `json:"queued_tasks"`
	IsRunning   bool         `json:"is_running"`
	IsPaused    bool         `json:"is_paused"`
	Completed   int64        `json:"total_tasks_completed"`
}

// ConflictRecord describes one detected divergence between client-held and
// server-held state. Resolution is always server-value-wins.
type ConflictRecord struct {
	ConflictID    uuid.UUID       `json:"conflict_id"`
	Type          string          `json:"conflict_type"`
	ServerVersion int64           `json:"server_version"`
	ClientVersion int64           `json:"client_version"`
	ServerValue   json.RawMessage `json:"server_value,omitempty"`
	ClientValue   json.RawMessage `json:"client_value,omitempty"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// NewQueueDelta builds a delta from the authoritative document.
func NewQueueDelta(doc *domain.QueueDocument, fromVersion int64) *QueueDelta {
	queued := make([]string, len(doc.QueuedTasks))
	for i, task := range doc.QueuedTasks {
		queued[i] = task.ID
	}

	var current *domain.Task
	if doc.CurrentTask != nil {
		copied := doc.CurrentTask.Clone()
		current = &copied
	}

	return &QueueDelta{
		FromVersion: fromVersion,
		ToVersion:   doc.Version,
		CurrentTask: current,
		QueuedTasks: queued,
		IsRunning:   doc.IsRunning,
		IsPaused:    doc.IsPaused,
		Completed:   doc.TotalTasksCompleted,
	}
}
