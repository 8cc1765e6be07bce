package repository

import (
	"context"

	"auth-token-service/internal/audit/domain"
)

// Repository defines persistence for audit entries.
type Repository interface {
	Create(ctx context.Context, e *domain.Entry) error
	ListBySubject(ctx context.Context, tenantID, subjectID string, limit, offset int32) ([]*domain.Entry, error)
}
