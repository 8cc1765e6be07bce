package interceptors

import "context"

type contextKey struct{ name string }

var (
	subjectIDKey = contextKey{"subject_id"}
	tenantIDKey  = contextKey{"tenant_id"}
	tokenIDKey   = contextKey{"token_id"}
)

// WithIdentity returns a context with subject_id, tenant_id, and token_id set.
// Handlers and services read these via GetSubjectID, GetTenantID, GetTokenID.
func WithIdentity(ctx context.Context, subjectID, tenantID, tokenID string) context.Context {
	ctx = context.WithValue(ctx, subjectIDKey, subjectID)
	ctx = context.WithValue(ctx, tenantIDKey, tenantID)
	ctx = context.WithValue(ctx, tokenIDKey, tokenID)
	return ctx
}

// GetSubjectID returns the subject_id from context and true if set; otherwise "", false.
func GetSubjectID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectIDKey).(string)
	return v, ok
}

// GetTenantID returns the tenant_id from context and true if set; otherwise "", false.
func GetTenantID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tenantIDKey).(string)
	return v, ok
}

// GetTokenID returns the jti of the access token from context and true if set; otherwise "", false.
func GetTokenID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenIDKey).(string)
	return v, ok
}
