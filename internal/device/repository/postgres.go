package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auth-token-service/internal/device/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device trust repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the trust record for the device, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, tenantID, subjectID, deviceID string) (*domain.TrustRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT tenant_id, subject_id, device_id, trusted_at, expires_at, revoked_at
		 FROM device_trust WHERE tenant_id = $1 AND subject_id = $2 AND device_id = $3`,
		tenantID, subjectID, deviceID)
	var rec domain.TrustRecord
	var revokedAt sql.NullTime
	err := row.Scan(&rec.TenantID, &rec.SubjectID, &rec.DeviceID, &rec.TrustedAt, &rec.ExpiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	return &rec, nil
}

// Upsert creates the trust record or refreshes its window. A revoked record
// is un-revoked: completing the second factor on the device re-establishes trust.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *domain.TrustRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_trust (tenant_id, subject_id, device_id, trusted_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id, subject_id, device_id)
		 DO UPDATE SET trusted_at = EXCLUDED.trusted_at, expires_at = EXCLUDED.expires_at, revoked_at = NULL`,
		rec.TenantID, rec.SubjectID, rec.DeviceID, rec.TrustedAt, rec.ExpiresAt)
	return err
}

// Revoke marks the trust record revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, tenantID, subjectID, deviceID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE device_trust SET revoked_at = $1
		 WHERE tenant_id = $2 AND subject_id = $3 AND device_id = $4 AND revoked_at IS NULL`,
		at, tenantID, subjectID, deviceID)
	return err
}

// RevokeAllForSubject revokes every trust record for the subject in the tenant.
func (r *PostgresRepository) RevokeAllForSubject(ctx context.Context, tenantID, subjectID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE device_trust SET revoked_at = $1
		 WHERE tenant_id = $2 AND subject_id = $3 AND revoked_at IS NULL`,
		at, tenantID, subjectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
