package interceptors

import (
	"context"
	"net"
	"strings"
	"unicode"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"auth-token-service/internal/audit/domain"
)

// Recorder is the audit surface the interceptor needs; *audit.Logger satisfies it.
type Recorder interface {
	Log(ctx context.Context, tenantID, subjectID, action string, severity domain.Severity, detail map[string]any)
}

// AuditUnary returns a unary server interceptor that records an audit entry
// after each RPC. skipMethods is the set of full method names to not audit
// (e.g. health checks). Recording is best-effort and only happens when
// tenant_id is set, i.e. on authenticated calls; unauthenticated paths audit
// themselves inside their services.
func AuditUnary(rec Recorder, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if rec == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		tenantID, _ := GetTenantID(ctx)
		if tenantID == "" {
			return resp, err
		}
		subjectID, _ := GetSubjectID(ctx)
		severity := domain.SeverityInfo
		if err != nil {
			severity = domain.SeverityWarn
		}
		rec.Log(ctx, tenantID, subjectID, methodAction(info.FullMethod), severity, map[string]any{
			"full_method": info.FullMethod,
			"status_code": status.Code(err).String(),
			"client_ip":   ClientIP(ctx),
		})
		return resp, err
	}
}

// methodAction derives an audit action from a gRPC full method name:
// "/authsvc.v1.TokenService/ExchangeRefresh" becomes "rpc_exchange_refresh".
func methodAction(fullMethod string) string {
	method := fullMethod
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		method = fullMethod[i+1:]
	}
	var b strings.Builder
	b.WriteString("rpc")
	runes := []rune(method)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			acronymEnd := i > 0 && unicode.IsUpper(runes[i-1]) &&
				i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i == 0 || prevLower || acronymEnd {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
