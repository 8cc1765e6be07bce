// Package telemetry fans security events out to external sinks: the Kafka
// event stream and OTel logs. Everything here is best-effort from the
// caller's point of view.
package telemetry

import (
	"context"

	auditdomain "auth-token-service/internal/audit/domain"
)

// EventEmitter emits one security event. Best-effort; callers log and
// ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, e *auditdomain.Entry) error
}

// MultiEmitter fans one event out to several emitters. A nil or failing
// member never stops the others.
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(ctx context.Context, e *auditdomain.Entry) error {
	var lastErr error
	for _, em := range m {
		if em == nil {
			continue
		}
		if err := em.Emit(ctx, e); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
