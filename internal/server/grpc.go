// Package server assembles the gRPC server: interceptor chain, OTel
// instrumentation, and the standard health service.
package server

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthsvc "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"auth-token-service/internal/health"
	"auth-token-service/internal/server/interceptors"
	"auth-token-service/internal/telemetry/producer"
	"auth-token-service/internal/token"
)

// healthFullMethod is the standard health service Check method; it is public
// and excluded from auditing and event emission.
const healthFullMethod = "/grpc.health.v1.Health/Check"

// Deps holds the server's dependencies. Verifier is required; the rest may be
// nil and the corresponding interceptor degrades to a pass-through.
type Deps struct {
	// Verifier validates Bearer access tokens for protected RPCs.
	Verifier *token.Verifier
	// Audit records per-RPC audit entries for authenticated calls.
	Audit interceptors.Recorder
	// Events is the security-event stream; per-RPC events are emitted to it.
	Events producer.Producer
	// PublicMethods are full method names callable without a Bearer token,
	// in addition to the health service.
	PublicMethods map[string]bool
}

// New builds the gRPC server and its health service. The health service
// starts as SERVING; callers run WatchReadiness to keep it honest.
func New(deps Deps) (*grpc.Server, *healthsvc.Server) {
	public := map[string]bool{healthFullMethod: true}
	for m := range deps.PublicMethods {
		public[m] = true
	}
	skip := map[string]bool{healthFullMethod: true}

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(deps.Verifier, public),
			interceptors.AuditUnary(deps.Audit, skip),
			interceptors.TelemetryUnary(deps.Events, skip),
		),
	)

	hs := healthsvc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// WatchReadiness polls checker and flips the health service between SERVING
// and NOT_SERVING. Blocks until ctx is done; run it in a goroutine.
func WatchReadiness(ctx context.Context, hs *healthsvc.Server, checker *health.Checker, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		status := healthpb.HealthCheckResponse_SERVING
		if err := checker.Check(checkCtx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		cancel()
		hs.SetServingStatus("", status)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
