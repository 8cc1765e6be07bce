package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	auditdomain "auth-token-service/internal/audit/domain"
	"auth-token-service/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that sends security events as
// OTel log records via the given LoggerProvider. If provider is nil,
// returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("authsvc.events")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *auditdomain.Entry) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the event to an OTel log record and emits it. Best-effort.
func (e *otelEmitter) Emit(ctx context.Context, entry *auditdomain.Entry) error {
	if entry == nil {
		return nil
	}
	rec := otellog.Record{}
	if !entry.OccurredAt.IsZero() {
		rec.SetTimestamp(entry.OccurredAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if entry.Detail != nil {
		if b, err := json.Marshal(entry.Detail); err == nil {
			rec.SetBody(otellog.BytesValue(b))
		}
	}
	if entry.TenantID != "" {
		rec.AddAttributes(otellog.String("tenant_id", entry.TenantID))
	}
	if entry.SubjectID != "" {
		rec.AddAttributes(otellog.String("subject_id", entry.SubjectID))
	}
	rec.AddAttributes(
		otellog.String("action", entry.Action),
		otellog.String("severity", string(entry.Severity)),
	)
	switch entry.Severity {
	case auditdomain.SeverityHigh:
		rec.SetSeverity(otellog.SeverityError)
	case auditdomain.SeverityWarn:
		rec.SetSeverity(otellog.SeverityWarn)
	default:
		rec.SetSeverity(otellog.SeverityInfo)
	}
	e.logger.Emit(ctx, rec)
	return nil
}
