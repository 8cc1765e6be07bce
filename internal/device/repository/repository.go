package repository

import (
	"context"
	"time"

	"auth-token-service/internal/device/domain"
)

// Repository defines persistence for device trust records.
type Repository interface {
	// Get returns the trust record for the device, or nil if not found.
	Get(ctx context.Context, tenantID, subjectID, deviceID string) (*domain.TrustRecord, error)
	// Upsert creates the trust record or refreshes its window.
	Upsert(ctx context.Context, r *domain.TrustRecord) error
	// Revoke marks the trust record revoked. Revoking a missing record is not an error.
	Revoke(ctx context.Context, tenantID, subjectID, deviceID string, at time.Time) error
	// RevokeAllForSubject revokes every trust record for the subject in the tenant.
	RevokeAllForSubject(ctx context.Context, tenantID, subjectID string, at time.Time) (int64, error)
}
