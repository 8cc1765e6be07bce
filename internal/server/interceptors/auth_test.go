package interceptors

import (
	"context"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"auth-token-service/internal/config"
	"auth-token-service/internal/keystore"
	"auth-token-service/internal/token"
)

func testTokenPair(t *testing.T) (*token.Issuer, *token.Verifier) {
	t.Helper()
	keys, err := keystore.Load(&config.Config{
		TokenAlgorithm:    "HS256",
		ActiveKeyID:       "v1",
		ActiveKeyMaterial: strings.Repeat("a", 32),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return token.NewIssuer(keys, "test-issuer", 0, 0), token.NewVerifier(keys, "test-issuer")
}

func TestAuthUnary_PublicMethod(t *testing.T) {
	_, verifier := testTokenPair(t)
	publicMethods := map[string]bool{
		"/test.Service/PublicMethod": true,
	}
	interceptor := AuthUnary(verifier, publicMethods)

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "success", nil
	}

	resp, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/PublicMethod",
	}, handler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
}

func TestAuthUnary_ProtectedMethod_NoToken(t *testing.T) {
	_, verifier := testTokenPair(t)
	interceptor := AuthUnary(verifier, map[string]bool{})

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "success", nil
	}

	_, err := interceptor(context.Background(), "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/ProtectedMethod",
	}, handler)
	if err == nil {
		t.Fatal("expected error for missing token")
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", st.Code(), codes.Unauthenticated)
	}
	if st.Message() != token.GenericAuthMessage {
		t.Errorf("message = %q, want the generic auth message", st.Message())
	}
}

func TestAuthUnary_ProtectedMethod_ValidToken(t *testing.T) {
	issuer, verifier := testTokenPair(t)
	raw, claims, err := issuer.IssueAccess("subject-1", "tenant-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	interceptor := AuthUnary(verifier, map[string]bool{})

	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Bearer " + raw,
	}))
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		subjectID, ok := GetSubjectID(ctx)
		if !ok || subjectID != "subject-1" {
			t.Errorf("subject_id = %q, ok = %v, want %q", subjectID, ok, "subject-1")
		}
		tenantID, ok := GetTenantID(ctx)
		if !ok || tenantID != "tenant-1" {
			t.Errorf("tenant_id = %q, ok = %v, want %q", tenantID, ok, "tenant-1")
		}
		tokenID, ok := GetTokenID(ctx)
		if !ok || tokenID != claims.ID {
			t.Errorf("token_id = %q, ok = %v, want %q", tokenID, ok, claims.ID)
		}
		return "success", nil
	}

	resp, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/ProtectedMethod",
	}, handler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
}

func TestAuthUnary_ProtectedMethod_InvalidToken(t *testing.T) {
	_, verifier := testTokenPair(t)
	interceptor := AuthUnary(verifier, map[string]bool{})

	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Bearer not-a-real-token",
	}))
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "success", nil
	}

	_, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/ProtectedMethod",
	}, handler)
	if err == nil {
		t.Fatal("expected error for invalid token")
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", st.Code(), codes.Unauthenticated)
	}
}

func TestAuthUnary_RefreshTokenRejectedAsBearer(t *testing.T) {
	issuer, verifier := testTokenPair(t)
	raw, _, err := issuer.IssueRefresh("subject-1", "tenant-1", "device-1", "", 0, time.Now().UTC())
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	interceptor := AuthUnary(verifier, map[string]bool{})

	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Bearer " + raw,
	}))
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "success", nil
	}

	_, err = interceptor(ctx, "request", &grpc.UnaryServerInfo{
		FullMethod: "/test.Service/ProtectedMethod",
	}, handler)
	if err == nil {
		t.Fatal("expected refresh token to be rejected on the access path")
	}
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("status code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"extra whitespace", "  Bearer   abc123  ", "abc123"},
		{"no scheme", "abc123", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.header != "" {
				ctx = metadata.NewIncomingContext(ctx, metadata.New(map[string]string{
					"authorization": tt.header,
				}))
			}
			if got := extractBearer(ctx); got != tt.want {
				t.Errorf("extractBearer(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
