// Package audit records security-relevant auth events. Writes are
// best-effort: an audit failure is logged and never fails the auth path
// it describes.
package audit

import (
	"context"
	"log"
	"time"

	"auth-token-service/internal/audit/domain"
	auditrepo "auth-token-service/internal/audit/repository"
	refreshdomain "auth-token-service/internal/refresh/domain"
)

// Emitter forwards entries to an external sink, typically the Kafka
// security-event stream. May be nil.
type Emitter interface {
	Emit(ctx context.Context, e *domain.Entry)
}

// Logger persists audit entries and fans them out to the emitter.
type Logger struct {
	repo    auditrepo.Repository
	emitter Emitter
}

// NewLogger returns a Logger. repo may be nil (entries are then only
// emitted); emitter may be nil.
func NewLogger(repo auditrepo.Repository, emitter Emitter) *Logger {
	return &Logger{repo: repo, emitter: emitter}
}

// Log writes one audit entry. Best-effort: errors are logged and not returned.
func (l *Logger) Log(ctx context.Context, tenantID, subjectID, action string, severity domain.Severity, detail map[string]any) {
	e := &domain.Entry{
		OccurredAt: time.Now().UTC(),
		TenantID:   tenantID,
		SubjectID:  subjectID,
		Action:     action,
		Severity:   severity,
		Detail:     detail,
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, e); err != nil {
			log.Printf("audit: write failed for %s: %v", action, err)
		}
	}
	if l.emitter != nil {
		l.emitter.Emit(ctx, e)
	}
}

// LoginSuccess records a completed login.
func (l *Logger) LoginSuccess(ctx context.Context, tenantID, subjectID, deviceID string) {
	l.Log(ctx, tenantID, subjectID, domain.ActionLoginSuccess, domain.SeverityInfo,
		map[string]any{"device_id": deviceID})
}

// LoginFailure records a failed login. The reason stays internal; clients
// only ever see a generic message.
func (l *Logger) LoginFailure(ctx context.Context, tenantID, subjectID, reason string) {
	l.Log(ctx, tenantID, subjectID, domain.ActionLoginFailure, domain.SeverityWarn,
		map[string]any{"reason": reason})
}

// LoginBlocked records an attempt rejected by the guard before any
// credential was checked.
func (l *Logger) LoginBlocked(ctx context.Context, tenantID, subjectID string) {
	l.Log(ctx, tenantID, subjectID, domain.ActionLoginBlocked, domain.SeverityWarn, nil)
}

// SecondFactorIssued records a new OTP challenge.
func (l *Logger) SecondFactorIssued(ctx context.Context, tenantID, subjectID, challengeID string) {
	l.Log(ctx, tenantID, subjectID, domain.ActionSecondFactorIssued, domain.SeverityInfo,
		map[string]any{"challenge_id": challengeID})
}

// SecondFactorSuccess records a passed second factor.
func (l *Logger) SecondFactorSuccess(ctx context.Context, tenantID, subjectID, method string) {
	l.Log(ctx, tenantID, subjectID, domain.ActionSecondFactorSuccess, domain.SeverityInfo,
		map[string]any{"method": method})
}

// SecondFactorFailure records a failed second factor answer.
func (l *Logger) SecondFactorFailure(ctx context.Context, tenantID, subjectID, method string) {
	l.Log(ctx, tenantID, subjectID, domain.ActionSecondFactorFailure, domain.SeverityWarn,
		map[string]any{"method": method})
}

// DeviceTrusted records a device entering the trust window.
func (l *Logger) DeviceTrusted(ctx context.Context, tenantID, subjectID, deviceID string, until time.Time) {
	l.Log(ctx, tenantID, subjectID, domain.ActionDeviceTrusted, domain.SeverityInfo,
		map[string]any{"device_id": deviceID, "trusted_until": until.Format(time.RFC3339)})
}

// KeyRotated records a signing key rotation.
func (l *Logger) KeyRotated(ctx context.Context, newKid string) {
	l.Log(ctx, "", "", domain.ActionKeyRotated, domain.SeverityInfo,
		map[string]any{"new_kid": newKid})
}

// RefreshRotated implements the ledger's event sink.
func (l *Logger) RefreshRotated(ctx context.Context, rec *refreshdomain.RefreshRecord) {
	l.Log(ctx, rec.TenantID, rec.SubjectID, domain.ActionRefreshRotated, domain.SeverityInfo,
		map[string]any{"lineage_id": rec.LineageID, "use_count": rec.UseCount, "device_id": rec.DeviceID})
}

// ReplayDetected implements the ledger's event sink. Replay is the one
// event that always alerts.
func (l *Logger) ReplayDetected(ctx context.Context, rec *refreshdomain.RefreshRecord, revoked int64) {
	l.Log(ctx, rec.TenantID, rec.SubjectID, domain.ActionReplayDetected, domain.SeverityHigh,
		map[string]any{"lineage_id": rec.LineageID, "device_id": rec.DeviceID, "revoked": revoked})
}

// LineageRevoked implements the ledger's event sink.
func (l *Logger) LineageRevoked(ctx context.Context, tenantID, subjectID, reason string, revoked int64) {
	l.Log(ctx, tenantID, subjectID, domain.ActionLineageRevoked, domain.SeverityWarn,
		map[string]any{"reason": reason, "revoked": revoked})
}
