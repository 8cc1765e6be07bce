package repository

import (
	"context"
	"time"

	"auth-token-service/internal/mfa/domain"
)

// ChallengeRepository defines persistence for OTP challenges.
type ChallengeRepository interface {
	Create(ctx context.Context, c *domain.Challenge) error
	// GetByID returns the challenge, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Challenge, error)
	// IncrementAttempts bumps the failed-answer counter.
	IncrementAttempts(ctx context.Context, id string) error
	// Consume marks the challenge answered and reports whether this call did
	// the transition. A consumed challenge never verifies again.
	Consume(ctx context.Context, id string, at time.Time) (bool, error)
	// DeleteExpired removes challenges that expired before the cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// BackupCodeRepository defines persistence for single-use backup codes.
type BackupCodeRepository interface {
	Insert(ctx context.Context, codes []*domain.BackupCode) error
	// ListActive returns the subject's unused codes.
	ListActive(ctx context.Context, tenantID, subjectID string) ([]*domain.BackupCode, error)
	// MarkUsed burns the code and reports whether this call did it. Exactly
	// one concurrent redeemer of the same code gets true.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
	// DeleteForSubject removes all of the subject's codes, used or not.
	DeleteForSubject(ctx context.Context, tenantID, subjectID string) error
}
