// Package service implements the refresh-token ledger: rotation on
// exchange, replay detection, and lineage-wide revocation.
package service

import (
	"context"
	"errors"
	"time"

	"auth-token-service/internal/refresh/domain"
	"auth-token-service/internal/security"
	"auth-token-service/internal/token"
)

// Sentinel errors for the ledger; the handler maps every one of them to the
// same generic client message.
var (
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrReplayDetected      = errors.New("refresh token reuse detected; lineage revoked")
	ErrRotationLimit       = errors.New("refresh lineage rotation limit reached")
	ErrServiceUnavailable  = errors.New("ledger temporarily unavailable")
)

// ExchangeResult holds the fresh token pair minted by a successful exchange.
type ExchangeResult struct {
	AccessToken   string
	RefreshToken  string
	AccessClaims  *token.Claims
	RefreshClaims *token.Claims
}

// Repo is the ledger repository surface the service needs.
type Repo interface {
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshRecord, error)
	Create(ctx context.Context, r *domain.RefreshRecord) error
	MarkRotated(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	RevokeByHash(ctx context.Context, tokenHash string, at time.Time) error
	RevokeLineage(ctx context.Context, lineageID string, at time.Time) (int64, error)
	RevokeBySubject(ctx context.Context, tenantID, subjectID string, at time.Time) (int64, error)
	RevokeByDevice(ctx context.Context, tenantID, subjectID, deviceID string, at time.Time) (int64, error)
}

// Events receives security-relevant ledger outcomes. Implemented by the
// audit logger; a nil Events drops them.
type Events interface {
	RefreshRotated(ctx context.Context, rec *domain.RefreshRecord)
	ReplayDetected(ctx context.Context, rec *domain.RefreshRecord, revoked int64)
	LineageRevoked(ctx context.Context, tenantID, subjectID, reason string, revoked int64)
}

// LedgerService owns every refresh-token state transition. Access tokens are
// never consulted here; only refresh tokens have ledger state.
type LedgerService struct {
	repo     Repo
	verifier *token.Verifier
	issuer   *token.Issuer
	events   Events
	maxUses  int
	now      func() time.Time
}

// NewLedgerService returns a LedgerService. maxUses caps rotations per
// lineage; events may be nil.
func NewLedgerService(repo Repo, verifier *token.Verifier, issuer *token.Issuer, events Events, maxUses int) *LedgerService {
	if maxUses <= 0 {
		maxUses = 3
	}
	return &LedgerService{
		repo:     repo,
		verifier: verifier,
		issuer:   issuer,
		events:   events,
		maxUses:  maxUses,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record persists the ledger entry for a freshly issued refresh token.
// Called at login time, before the token is returned to the client.
func (s *LedgerService) Record(ctx context.Context, refreshToken string, claims *token.Claims) error {
	rec := &domain.RefreshRecord{
		TokenHash: security.HashToken(refreshToken),
		SubjectID: claims.Subject,
		TenantID:  claims.TenantID,
		DeviceID:  claims.DeviceID,
		LineageID: claims.LineageID,
		UseCount:  claims.RotationCounter,
		Status:    domain.StatusActive,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.withRetry(ctx, func() error { return s.repo.Create(ctx, rec) }); err != nil {
		return ErrServiceUnavailable
	}
	return nil
}

// Exchange trades an active refresh token for a fresh access/refresh pair.
// The presented token is retired in the same step; presenting it again, or
// presenting any already-retired token in the lineage, revokes the whole
// lineage. Concurrent exchanges of the same token have exactly one winner.
func (s *LedgerService) Exchange(ctx context.Context, refreshToken string) (*ExchangeResult, error) {
	now := s.now()
	claims, err := s.verifier.VerifyRefresh(refreshToken, now)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	hash := security.HashToken(refreshToken)
	var rec *domain.RefreshRecord
	if err := s.withRetry(ctx, func() error {
		var e error
		rec, e = s.repo.GetByHash(ctx, hash)
		return e
	}); err != nil {
		return nil, ErrServiceUnavailable
	}
	if rec == nil {
		// Signature was valid but the ledger never saw this token. Treat as
		// invalid, not replay: there is no lineage state to protect.
		return nil, ErrInvalidRefreshToken
	}
	if claims.LineageID != rec.LineageID || claims.DeviceID != rec.DeviceID {
		// The token's claims and the ledger row disagree about the lineage.
		// That row belongs to some other token; do not act on it.
		return nil, ErrInvalidRefreshToken
	}

	if rec.Status != domain.StatusActive {
		revoked, _ := s.repo.RevokeLineage(ctx, rec.LineageID, now)
		if s.events != nil {
			s.events.ReplayDetected(ctx, rec, revoked)
		}
		return nil, ErrReplayDetected
	}
	if !now.Before(rec.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}
	if rec.UseCount >= s.maxUses {
		// The lineage hit its rotation cap. The client must log in again;
		// this is a policy limit, not an attack, so no cascade.
		_ = s.repo.RevokeByHash(ctx, hash, now)
		return nil, ErrRotationLimit
	}

	var won bool
	if err := s.withRetry(ctx, func() error {
		var e error
		won, e = s.repo.MarkRotated(ctx, hash, now)
		return e
	}); err != nil {
		return nil, ErrServiceUnavailable
	}
	if !won {
		// Another exchange beat this one to the active row. The token has now
		// been used twice, which is indistinguishable from theft.
		revoked, _ := s.repo.RevokeLineage(ctx, rec.LineageID, now)
		if s.events != nil {
			s.events.ReplayDetected(ctx, rec, revoked)
		}
		return nil, ErrReplayDetected
	}

	accessToken, accessClaims, err := s.issuer.IssueAccess(rec.SubjectID, rec.TenantID, now)
	if err != nil {
		return nil, err
	}
	newRefresh, refreshClaims, err := s.issuer.IssueRefresh(
		rec.SubjectID, rec.TenantID, rec.DeviceID, rec.LineageID, rec.UseCount+1, now)
	if err != nil {
		return nil, err
	}
	child := &domain.RefreshRecord{
		TokenHash:  security.HashToken(newRefresh),
		SubjectID:  rec.SubjectID,
		TenantID:   rec.TenantID,
		DeviceID:   rec.DeviceID,
		LineageID:  rec.LineageID,
		ParentHash: rec.TokenHash,
		UseCount:   rec.UseCount + 1,
		Status:     domain.StatusActive,
		IssuedAt:   refreshClaims.IssuedAt.Time,
		ExpiresAt:  refreshClaims.ExpiresAt.Time,
	}
	if err := s.withRetry(ctx, func() error { return s.repo.Create(ctx, child) }); err != nil {
		return nil, ErrServiceUnavailable
	}
	if s.events != nil {
		s.events.RefreshRotated(ctx, child)
	}
	return &ExchangeResult{
		AccessToken:   accessToken,
		RefreshToken:  newRefresh,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}, nil
}

// Revoke retires a single refresh token, typically on logout. Revoking an
// unknown or already-retired token is not an error.
func (s *LedgerService) Revoke(ctx context.Context, refreshToken string) error {
	now := s.now()
	hash := security.HashToken(refreshToken)
	if err := s.withRetry(ctx, func() error { return s.repo.RevokeByHash(ctx, hash, now) }); err != nil {
		return ErrServiceUnavailable
	}
	return nil
}

// RevokeSubject revokes every active refresh token for the subject across
// all devices. Used on password reset and account lockout.
func (s *LedgerService) RevokeSubject(ctx context.Context, tenantID, subjectID, reason string) (int64, error) {
	now := s.now()
	var revoked int64
	if err := s.withRetry(ctx, func() error {
		var e error
		revoked, e = s.repo.RevokeBySubject(ctx, tenantID, subjectID, now)
		return e
	}); err != nil {
		return 0, ErrServiceUnavailable
	}
	if s.events != nil && revoked > 0 {
		s.events.LineageRevoked(ctx, tenantID, subjectID, reason, revoked)
	}
	return revoked, nil
}

// RevokeDevice revokes every active refresh token bound to the device.
func (s *LedgerService) RevokeDevice(ctx context.Context, tenantID, subjectID, deviceID string) (int64, error) {
	now := s.now()
	var revoked int64
	if err := s.withRetry(ctx, func() error {
		var e error
		revoked, e = s.repo.RevokeByDevice(ctx, tenantID, subjectID, deviceID, now)
		return e
	}); err != nil {
		return 0, ErrServiceUnavailable
	}
	if s.events != nil && revoked > 0 {
		s.events.LineageRevoked(ctx, tenantID, subjectID, "device revoked", revoked)
	}
	return revoked, nil
}

// retryBackoff is the pause before the single retry of a failed ledger call.
const retryBackoff = 100 * time.Millisecond

// withRetry runs op and retries it once after a short backoff. Ledger writes
// are idempotent per token hash, so a single retry is safe.
func (s *LedgerService) withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryBackoff):
	}
	return op()
}
