package domain

import (
	"time"
)

// AuditRecord describes one attempted or completed privileged or mutating
// operation. Records are immutable once written; normal operation never
// updates or deletes them.
type AuditRecord struct {
	Operation      string            `json:"operation"`
	ActorID        string            `json:"actor_id"`
	TargetPlayerID string            `json:"target_player_id"`
	Success        bool              `json:"success"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	IsAdminAction  bool              `json:"is_admin_action"`
	AdminLevel     int               `json:"admin_level,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// SecurityEvent reports whether the record belongs to a security-relevant
// category (rate limiting or validation failures) used for monitoring.
func (r *AuditRecord) SecurityEvent() bool {
	switch r.Operation {
	case "rate_limit_exceeded", "validation_failure", "token_rejected", "decryption_failure":
		return true
	}
	return false
}
