package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auth-token-service/internal/mfa/domain"
)

type PostgresChallengeRepository struct {
	db *sql.DB
}

// NewPostgresChallengeRepository returns an OTP challenge repository backed by the given db.
func NewPostgresChallengeRepository(db *sql.DB) *PostgresChallengeRepository {
	return &PostgresChallengeRepository{db: db}
}

// Create persists the challenge. The challenge must have ID set.
func (r *PostgresChallengeRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_challenges (id, tenant_id, subject_id, code_hash, attempts, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.TenantID, c.SubjectID, c.CodeHash, c.Attempts, c.CreatedAt, c.ExpiresAt)
	return err
}

// GetByID returns the challenge for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresChallengeRepository) GetByID(ctx context.Context, id string) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, subject_id, code_hash, attempts, created_at, expires_at, consumed_at
		 FROM otp_challenges WHERE id = $1`, id)
	var c domain.Challenge
	var consumedAt sql.NullTime
	err := row.Scan(&c.ID, &c.TenantID, &c.SubjectID, &c.CodeHash, &c.Attempts, &c.CreatedAt, &c.ExpiresAt, &consumedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if consumedAt.Valid {
		c.ConsumedAt = &consumedAt.Time
	}
	return &c, nil
}

// IncrementAttempts bumps the failed-answer counter.
func (r *PostgresChallengeRepository) IncrementAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = $1`, id)
	return err
}

// Consume marks the challenge answered. The IS NULL guard makes the row
// update the arbiter under concurrent answers.
func (r *PostgresChallengeRepository) Consume(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE otp_challenges SET consumed_at = $1 WHERE id = $2 AND consumed_at IS NULL`,
		at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpired removes challenges that expired before the cutoff.
func (r *PostgresChallengeRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type PostgresBackupCodeRepository struct {
	db *sql.DB
}

// NewPostgresBackupCodeRepository returns a backup code repository backed by the given db.
func NewPostgresBackupCodeRepository(db *sql.DB) *PostgresBackupCodeRepository {
	return &PostgresBackupCodeRepository{db: db}
}

// Insert persists a batch of freshly generated codes.
func (r *PostgresBackupCodeRepository) Insert(ctx context.Context, codes []*domain.BackupCode) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, c := range codes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO backup_codes (id, tenant_id, subject_id, code_hash, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.TenantID, c.SubjectID, c.CodeHash, c.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListActive returns the subject's unused codes.
func (r *PostgresBackupCodeRepository) ListActive(ctx context.Context, tenantID, subjectID string) ([]*domain.BackupCode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, subject_id, code_hash, created_at
		 FROM backup_codes WHERE tenant_id = $1 AND subject_id = $2 AND used_at IS NULL`,
		tenantID, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.BackupCode
	for rows.Next() {
		var c domain.BackupCode
		if err := rows.Scan(&c.ID, &c.TenantID, &c.SubjectID, &c.CodeHash, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// MarkUsed burns the code. The IS NULL guard gives concurrent redeemers
// exactly one winner.
func (r *PostgresBackupCodeRepository) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE backup_codes SET used_at = $1 WHERE id = $2 AND used_at IS NULL`, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteForSubject removes all of the subject's codes.
func (r *PostgresBackupCodeRepository) DeleteForSubject(ctx context.Context, tenantID, subjectID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE tenant_id = $1 AND subject_id = $2`,
		tenantID, subjectID)
	return err
}
