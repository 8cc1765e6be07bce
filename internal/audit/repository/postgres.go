package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"auth-token-service/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the entry. OccurredAt defaults to now when zero.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Entry) error {
	var detail []byte
	if e.Detail != nil {
		var err error
		detail, err = json.Marshal(e.Detail)
		if err != nil {
			return err
		}
	}
	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (occurred_at, tenant_id, subject_id, action, severity, detail)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		occurredAt, e.TenantID, e.SubjectID, e.Action, e.Severity, detail)
	return err
}

// ListBySubject returns the subject's entries, newest first.
func (r *PostgresRepository) ListBySubject(ctx context.Context, tenantID, subjectID string, limit, offset int32) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, occurred_at, tenant_id, subject_id, action, severity, COALESCE(detail, 'null'::jsonb)
		 FROM audit_logs
		 WHERE tenant_id = $1 AND subject_id = $2
		 ORDER BY occurred_at DESC
		 LIMIT $3 OFFSET $4`,
		tenantID, subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Entry
	for rows.Next() {
		var e domain.Entry
		var detail []byte
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.TenantID, &e.SubjectID, &e.Action, &e.Severity, &detail); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
