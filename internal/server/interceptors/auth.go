package interceptors

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"auth-token-service/internal/token"
)

const bearerPrefix = "bearer "

// AuthUnary returns a unary server interceptor that validates the Bearer
// access token from gRPC metadata and sets subject_id, tenant_id, token_id in
// context for protected RPCs. publicMethods is the set of full method names
// that do not require a Bearer token (e.g. login, refresh, health check).
// Every rejection carries the same generic message; the concrete verification
// failure never reaches the client.
func AuthUnary(tokens *token.Verifier, publicMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		raw := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if raw == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, token.GenericAuthMessage)
		}

		claims, err := tokens.VerifyAccess(raw, time.Now().UTC())
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, token.GenericAuthMessage)
		}

		ctx = WithIdentity(ctx, claims.Subject, claims.TenantID, claims.ID)
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
