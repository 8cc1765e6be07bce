package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PostgresCredentialRepository struct {
	db *sql.DB
}

// NewPostgresCredentialRepository returns a credential repository backed by the given db.
func NewPostgresCredentialRepository(db *sql.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{db: db}
}

// Get returns the credential, or nil if the subject has none.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresCredentialRepository) Get(ctx context.Context, tenantID, subjectID string) (*Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT tenant_id, subject_id, password_hash, password_updated_at
		 FROM credentials WHERE tenant_id = $1 AND subject_id = $2`,
		tenantID, subjectID)
	var c Credential
	err := row.Scan(&c.TenantID, &c.SubjectID, &c.PasswordHash, &c.PasswordUpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Upsert creates or replaces the credential.
func (r *PostgresCredentialRepository) Upsert(ctx context.Context, c *Credential) error {
	updatedAt := c.PasswordUpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (tenant_id, subject_id, password_hash, password_updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, subject_id)
		 DO UPDATE SET password_hash = EXCLUDED.password_hash, password_updated_at = EXCLUDED.password_updated_at`,
		c.TenantID, c.SubjectID, c.PasswordHash, updatedAt)
	return err
}
