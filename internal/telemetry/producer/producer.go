// Package producer emits security events to Kafka.
package producer

import (
	"context"

	auditdomain "auth-token-service/internal/audit/domain"
)

// Producer emits security events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call
	// from a goroutine if needed.
	Emit(ctx context.Context, e *auditdomain.Entry) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
