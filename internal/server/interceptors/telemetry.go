package interceptors

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"auth-token-service/internal/audit/domain"
	"auth-token-service/internal/telemetry/producer"
)

// TelemetryUnary returns a unary server interceptor that emits a security
// event to the event stream after each RPC. Best-effort: failures are logged
// and never fail the RPC. If p is nil, the interceptor no-ops. skipMethods is
// the set of full method names to not emit (e.g. health checks).
func TelemetryUnary(p producer.Producer, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if p == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		tenantID, _ := GetTenantID(ctx)
		subjectID, _ := GetSubjectID(ctx)
		event := &domain.Entry{
			OccurredAt: time.Now().UTC(),
			TenantID:   tenantID,
			SubjectID:  subjectID,
			Action:     "grpc_request",
			Severity:   domain.SeverityInfo,
			Detail: map[string]any{
				"full_method": info.FullMethod,
				"status_code": status.Code(err).String(),
				"duration_ms": time.Since(start).Milliseconds(),
				"client_ip":   ClientIP(ctx),
			},
		}
		go func() {
			emitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if emitErr := p.Emit(emitCtx, event); emitErr != nil {
				log.Printf("telemetry: interceptor emit failed: %v", emitErr)
			}
		}()
		return resp, err
	}
}
