package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auth-token-service/internal/refresh/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a ledger repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `token_hash, subject_id, tenant_id, device_id, lineage_id,
	COALESCE(parent_hash, ''), use_count, status, issued_at, expires_at, rotated_at, revoked_at`

// GetByHash returns the record for the token hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM refresh_records WHERE token_hash = $1`, tokenHash)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// Create persists the record. The record must have TokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.RefreshRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_records
			(token_hash, subject_id, tenant_id, device_id, lineage_id, parent_hash,
			 use_count, status, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`,
		rec.TokenHash, rec.SubjectID, rec.TenantID, rec.DeviceID, rec.LineageID,
		rec.ParentHash, rec.UseCount, rec.Status, rec.IssuedAt, rec.ExpiresAt)
	return err
}

// MarkRotated performs the active-to-rotated transition. The WHERE clause on
// status makes the row update the arbiter: under concurrent exchanges only
// one statement matches the active row.
func (r *PostgresRepository) MarkRotated(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_records SET status = $1, rotated_at = $2
		 WHERE token_hash = $3 AND status = $4`,
		domain.StatusRotated, at, tokenHash, domain.StatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeByHash marks a single record revoked.
func (r *PostgresRepository) RevokeByHash(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_records SET status = $1, revoked_at = $2
		 WHERE token_hash = $3 AND status <> $1`,
		domain.StatusRevoked, at, tokenHash)
	return err
}

// RevokeLineage revokes every non-revoked record in the lineage.
func (r *PostgresRepository) RevokeLineage(ctx context.Context, lineageID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_records SET status = $1, revoked_at = $2
		 WHERE lineage_id = $3 AND status <> $1`,
		domain.StatusRevoked, at, lineageID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RevokeBySubject revokes every active record for the subject in the tenant.
func (r *PostgresRepository) RevokeBySubject(ctx context.Context, tenantID, subjectID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_records SET status = $1, revoked_at = $2
		 WHERE tenant_id = $3 AND subject_id = $4 AND status = $5`,
		domain.StatusRevoked, at, tenantID, subjectID, domain.StatusActive)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RevokeByDevice revokes every active record for the subject's device.
func (r *PostgresRepository) RevokeByDevice(ctx context.Context, tenantID, subjectID, deviceID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_records SET status = $1, revoked_at = $2
		 WHERE tenant_id = $3 AND subject_id = $4 AND device_id = $5 AND status = $6`,
		domain.StatusRevoked, at, tenantID, subjectID, deviceID, domain.StatusActive)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired removes records whose tokens expired before the cutoff.
// Ledger hygiene only; revocation state for live tokens is never touched.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_records WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRecord(row *sql.Row) (*domain.RefreshRecord, error) {
	var rec domain.RefreshRecord
	var rotatedAt, revokedAt sql.NullTime
	err := row.Scan(
		&rec.TokenHash, &rec.SubjectID, &rec.TenantID, &rec.DeviceID, &rec.LineageID,
		&rec.ParentHash, &rec.UseCount, &rec.Status, &rec.IssuedAt, &rec.ExpiresAt,
		&rotatedAt, &revokedAt)
	if err != nil {
		return nil, err
	}
	if rotatedAt.Valid {
		rec.RotatedAt = &rotatedAt.Time
	}
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	return &rec, nil
}
