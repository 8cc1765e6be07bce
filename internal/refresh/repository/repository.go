package repository

import (
	"context"
	"time"

	"auth-token-service/internal/refresh/domain"
)

// Repository defines persistence for the refresh-token ledger.
type Repository interface {
	// GetByHash returns the record for the token hash, or nil if not found.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshRecord, error)
	// Create persists a new ledger record.
	Create(ctx context.Context, r *domain.RefreshRecord) error
	// MarkRotated transitions the record from active to rotated and reports
	// whether this call performed the transition. Under concurrent exchanges
	// of the same token exactly one caller gets true.
	MarkRotated(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	// RevokeByHash marks a single record revoked.
	RevokeByHash(ctx context.Context, tokenHash string, at time.Time) error
	// RevokeLineage revokes every non-revoked record in the lineage and
	// returns how many records it touched.
	RevokeLineage(ctx context.Context, lineageID string, at time.Time) (int64, error)
	// RevokeBySubject revokes every active record for the subject in the tenant.
	RevokeBySubject(ctx context.Context, tenantID, subjectID string, at time.Time) (int64, error)
	// RevokeByDevice revokes every active record for the subject's device.
	RevokeByDevice(ctx context.Context, tenantID, subjectID, deviceID string, at time.Time) (int64, error)
	// DeleteExpired removes records whose tokens expired before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
