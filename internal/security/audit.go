package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/veldtman/grind-api/internal/domain"
	"github.com/veldtman/grind-api/internal/platform/logger"
	"github.com/veldtman/grind-api/internal/store"
)

// AuditLogger writes immutable audit records for every attempted mutation
// and privileged action. Audit failures are logged and swallowed; a broken
// audit sink must not take the gameplay path down with it.
// errorDetailWithheld replaces an error message that could not be sealed.
// The record itself still lands; only the detail is lost.
const errorDetailWithheld = "[error detail unavailable]"

// fieldCrypter is the part of FieldCipher the audit logger uses.
type fieldCrypter interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(encoded string) ([]byte, error)
}

type AuditLogger struct {
	audits   store.AuditStore
	cipher   fieldCrypter
	timeFunc func() time.Time // Injectable for testing
}

// NewAuditLogger creates an audit logger over the given store.
func NewAuditLogger(audits store.AuditStore) *AuditLogger {
	return &AuditLogger{
		audits:   audits,
		timeFunc: time.Now,
	}
}

// WithCipher enables encryption of error messages at rest. Error messages
// echo raw player input, so they are sealed before leaving this layer.
func (a *AuditLogger) WithCipher(cipher *FieldCipher) *AuditLogger {
	a.cipher = cipher
	return a
}

// SetTimeFunc overrides the logger's clock for tests.
func (a *AuditLogger) SetTimeFunc(fn func() time.Time) {
	a.timeFunc = fn
}

// Record appends one audit record, stamping the current time.
func (a *AuditLogger) Record(ctx context.Context, rec domain.AuditRecord) {
	rec.OccurredAt = a.timeFunc()

	if a.cipher != nil && rec.ErrorMessage != "" {
		sealed, err := a.cipher.Encrypt([]byte(rec.ErrorMessage))
		if err != nil {
			// The attempt must still be recorded; only the detail is dropped.
			log := logger.FromContext(ctx)
			log.Error("failed to encrypt audit error message",
				slog.String("operation", rec.Operation),
				slog.String("error", err.Error()))
			rec.ErrorMessage = errorDetailWithheld
		} else {
			rec.ErrorMessage = sealed
		}
	}

	if err := a.audits.Append(ctx, &rec); err != nil {
		log := logger.FromContext(ctx)
		log.Error("failed to append audit record",
			slog.String("operation", rec.Operation),
			slog.String("target_player_id", rec.TargetPlayerID),
			slog.String("error", err.Error()))
	}
}

// RecordOperation is a convenience wrapper for player-initiated operations.
func (a *AuditLogger) RecordOperation(ctx context.Context, operation, actorID, targetPlayerID string, success bool, errMsg string) {
	a.Record(ctx, domain.AuditRecord{
		Operation:      operation,
		ActorID:        actorID,
		TargetPlayerID: targetPlayerID,
		Success:        success,
		ErrorMessage:   errMsg,
	})
}

// RecordAdmin writes an audit record for an admin-initiated operation,
// which is always flagged distinctly from regular player actions.
func (a *AuditLogger) RecordAdmin(ctx context.Context, operation, adminID, targetPlayerID string, adminLevel int, success bool, errMsg string) {
	a.Record(ctx, domain.AuditRecord{
		Operation:      operation,
		ActorID:        adminID,
		TargetPlayerID: targetPlayerID,
		Success:        success,
		ErrorMessage:   errMsg,
		IsAdminAction:  true,
		AdminLevel:     adminLevel,
	})
}

// SecurityEvents returns the security-relevant audit records from the last
// given number of hours, newest first.
func (a *AuditLogger) SecurityEvents(ctx context.Context, hours int) ([]*domain.AuditRecord, error) {
	if hours <= 0 {
		hours = 24
	}
	since := a.timeFunc().Add(-time.Duration(hours) * time.Hour)

	records, err := a.audits.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}

	events := make([]*domain.AuditRecord, 0, len(records))
	for _, rec := range records {
		if !rec.SecurityEvent() {
			continue
		}
		if a.cipher != nil && rec.ErrorMessage != "" && rec.ErrorMessage != errorDetailWithheld {
			plaintext, err := a.cipher.Decrypt(rec.ErrorMessage)
			if err != nil {
				return nil, fmt.Errorf("audit record %q for player %s: %w",
					rec.Operation, rec.TargetPlayerID, err)
			}
			// Stores may hand back shared records; never mutate them.
			decrypted := *rec
			decrypted.ErrorMessage = string(plaintext)
			rec = &decrypted
		}
		events = append(events, rec)
	}
	return events, nil
}
