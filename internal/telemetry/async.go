package telemetry

import (
	"context"
	"log"
	"time"

	auditdomain "auth-token-service/internal/audit/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after gRPC GracefulStop before
// shutting down OTel providers, so in-flight async emits have time to
// complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is
// not blocked. emitter and e may be nil; EmitAsync then returns immediately.
// The goroutine uses context.Background() so request cancellation does not
// abort an in-flight emit.
func EmitAsync(emitter EventEmitter, e *auditdomain.Entry) {
	if emitter == nil || e == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, e); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}

// AuditSink adapts an EventEmitter to the audit logger's fire-and-forget
// emitter surface.
type AuditSink struct {
	emitter EventEmitter
}

// NewAuditSink returns a sink feeding the audit logger's events into emitter.
func NewAuditSink(emitter EventEmitter) *AuditSink {
	return &AuditSink{emitter: emitter}
}

func (s *AuditSink) Emit(_ context.Context, e *auditdomain.Entry) {
	EmitAsync(s.emitter, e)
}
