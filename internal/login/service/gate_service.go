// Package service implements the login gate: password check, second-factor
// decision, OTP and backup-code verification, and device trust.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	auditlog "auth-token-service/internal/audit"
	devicedomain "auth-token-service/internal/device/domain"
	"auth-token-service/internal/guard"
	"auth-token-service/internal/login/attempt"
	loginrepo "auth-token-service/internal/login/repository"
	"auth-token-service/internal/mfa"
	mfadomain "auth-token-service/internal/mfa/domain"
	policyengine "auth-token-service/internal/policy/engine"
	refreshservice "auth-token-service/internal/refresh/service"
	"auth-token-service/internal/security"
	"auth-token-service/internal/token"
)

// Sentinel errors for the gate; the handler maps all credential failures to
// the same generic client message so error text never reveals which check failed.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrChallengeNotFound  = errors.New("challenge not found or expired")
	ErrSecondFactorFailed = errors.New("second factor verification failed")
	ErrWeakPassword       = errors.New("password below minimum length")
)

const minPasswordLen = 8

// Status tells the client what the login needs next.
type Status string

const (
	StatusIssued               Status = "issued"
	StatusSecondFactorRequired Status = "second_factor_required"
)

// Result is the outcome of a gate call. Tokens are set only when Status is
// issued; ChallengeID only when a second factor is pending.
type Result struct {
	Status       Status
	ChallengeID  string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// DeviceTrustRepo is the device trust surface the gate needs.
type DeviceTrustRepo interface {
	Get(ctx context.Context, tenantID, subjectID, deviceID string) (*devicedomain.TrustRecord, error)
	Upsert(ctx context.Context, r *devicedomain.TrustRecord) error
	RevokeAllForSubject(ctx context.Context, tenantID, subjectID string, at time.Time) (int64, error)
}

// ChallengeRepo is the OTP challenge surface the gate needs.
type ChallengeRepo interface {
	Create(ctx context.Context, c *mfadomain.Challenge) error
	GetByID(ctx context.Context, id string) (*mfadomain.Challenge, error)
	IncrementAttempts(ctx context.Context, id string) error
	Consume(ctx context.Context, id string, at time.Time) (bool, error)
}

// BackupCodeRepo is the backup code surface the gate needs.
type BackupCodeRepo interface {
	Insert(ctx context.Context, codes []*mfadomain.BackupCode) error
	ListActive(ctx context.Context, tenantID, subjectID string) ([]*mfadomain.BackupCode, error)
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
	DeleteForSubject(ctx context.Context, tenantID, subjectID string) error
}

// CodeSender delivers an OTP code to the subject out of band. The gate never
// returns the code to the caller.
type CodeSender interface {
	Send(ctx context.Context, tenantID, subjectID, code string) error
}

// TenantPolicy is the tenant's second-factor configuration fed into the
// policy engine.
type TenantPolicy struct {
	RequireAlways       bool
	RequireForUntrusted bool
	TrustTTLHours       int
}

// GateService runs the login flow end to end.
type GateService struct {
	credentials loginrepo.CredentialRepository
	deviceTrust DeviceTrustRepo
	challenges  ChallengeRepo
	backupCodes BackupCodeRepo
	attempts    attempt.Store
	ledger      *refreshservice.LedgerService
	issuer      *token.Issuer
	hasher      *security.Hasher
	policy      policyengine.Evaluator
	guard       guard.Guard
	audit       *auditlog.Logger
	sender      CodeSender
	tenant      TenantPolicy

	challengeTTL time.Duration
	now          func() time.Time
}

// Deps bundles the gate's collaborators.
type Deps struct {
	Credentials  loginrepo.CredentialRepository
	DeviceTrust  DeviceTrustRepo
	Challenges   ChallengeRepo
	BackupCodes  BackupCodeRepo
	Attempts     attempt.Store
	Ledger       *refreshservice.LedgerService
	Issuer       *token.Issuer
	Hasher       *security.Hasher
	Policy       policyengine.Evaluator
	Guard        guard.Guard
	Audit        *auditlog.Logger
	Sender       CodeSender
	Tenant       TenantPolicy
	ChallengeTTL time.Duration
}

// NewGateService returns a GateService. Guard and Sender may be nil; a nil
// guard allows everything.
func NewGateService(d Deps) *GateService {
	g := d.Guard
	if g == nil {
		g = guard.NoopGuard{}
	}
	ttl := d.ChallengeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &GateService{
		credentials:  d.Credentials,
		deviceTrust:  d.DeviceTrust,
		challenges:   d.Challenges,
		backupCodes:  d.BackupCodes,
		attempts:     d.Attempts,
		ledger:       d.Ledger,
		issuer:       d.Issuer,
		hasher:       d.Hasher,
		policy:       d.Policy,
		guard:        g,
		audit:        d.Audit,
		sender:       d.Sender,
		tenant:       d.Tenant,
		challengeTTL: ttl,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func guardKey(tenantID, subjectID string) string {
	return tenantID + ":" + subjectID
}

// Login runs the password step. It either issues tokens directly (trusted
// device) or opens an OTP challenge.
func (s *GateService) Login(ctx context.Context, tenantID, subjectID, password, deviceID string) (*Result, error) {
	now := s.now()
	key := guardKey(tenantID, subjectID)

	allowed, err := s.guard.CheckAllowed(ctx, key)
	if err == nil && !allowed {
		if s.audit != nil {
			s.audit.LoginBlocked(ctx, tenantID, subjectID)
		}
		return nil, ErrTooManyAttempts
	}

	cred, err := s.credentials.Get(ctx, tenantID, subjectID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		// Burn comparable time so an unknown subject is indistinguishable
		// from a wrong password.
		_ = s.hasher.Compare("$2a$12$C6UzMDM.H6dfI/f/IKcEeO7ZfbmCVVJ9tLPyVGWyLGODoFvbjQkua", []byte(password))
		s.recordFailure(ctx, tenantID, subjectID, "unknown subject")
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(cred.PasswordHash, []byte(password)); err != nil {
		s.recordFailure(ctx, tenantID, subjectID, "bad password")
		return nil, ErrInvalidCredentials
	}

	decision, err := s.evaluatePolicy(ctx, tenantID, subjectID, deviceID, now)
	if err != nil {
		return nil, err
	}
	if !decision.SecondFactorRequired {
		_ = s.guard.ReportSuccess(ctx, key)
		return s.issueTokens(ctx, tenantID, subjectID, deviceID, now)
	}
	return s.openChallenge(ctx, tenantID, subjectID, deviceID, decision, now)
}

// AnswerChallenge verifies an OTP answer and, on success, finishes the login.
func (s *GateService) AnswerChallenge(ctx context.Context, challengeID, code string) (*Result, error) {
	now := s.now()
	st, ok := s.attempts.Get(ctx, challengeID)
	if !ok {
		return nil, ErrChallengeNotFound
	}
	key := guardKey(st.TenantID, st.SubjectID)

	allowed, err := s.guard.CheckAllowed(ctx, key)
	if err == nil && !allowed {
		if s.audit != nil {
			s.audit.LoginBlocked(ctx, st.TenantID, st.SubjectID)
		}
		return nil, ErrTooManyAttempts
	}

	ch, err := s.challenges.GetByID(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if ch == nil || !ch.Answerable(now) {
		return nil, ErrChallengeNotFound
	}
	if !mfa.OTPEqual(code, ch.CodeHash) {
		_ = s.challenges.IncrementAttempts(ctx, challengeID)
		_ = s.guard.ReportFailure(ctx, key)
		if s.audit != nil {
			s.audit.SecondFactorFailure(ctx, st.TenantID, st.SubjectID, "otp")
		}
		return nil, ErrSecondFactorFailed
	}
	won, err := s.challenges.Consume(ctx, challengeID, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// A parallel answer already consumed this challenge.
		return nil, ErrChallengeNotFound
	}
	return s.completeSecondFactor(ctx, challengeID, st, "otp", now)
}

// RedeemBackupCode finishes a pending login with a single-use backup code
// instead of the OTP.
func (s *GateService) RedeemBackupCode(ctx context.Context, challengeID, code string) (*Result, error) {
	now := s.now()
	st, ok := s.attempts.Get(ctx, challengeID)
	if !ok {
		return nil, ErrChallengeNotFound
	}
	key := guardKey(st.TenantID, st.SubjectID)

	allowed, err := s.guard.CheckAllowed(ctx, key)
	if err == nil && !allowed {
		return nil, ErrTooManyAttempts
	}

	codes, err := s.backupCodes.ListActive(ctx, st.TenantID, st.SubjectID)
	if err != nil {
		return nil, err
	}
	for _, bc := range codes {
		if s.hasher.Compare(bc.CodeHash, []byte(code)) != nil {
			continue
		}
		won, err := s.backupCodes.MarkUsed(ctx, bc.ID, now)
		if err != nil {
			return nil, err
		}
		if !won {
			// Concurrent redeem of the same code; only the winner proceeds.
			break
		}
		consumed, err := s.challenges.Consume(ctx, challengeID, now)
		if err != nil {
			return nil, err
		}
		if !consumed {
			// The challenge was already answered; do not issue again.
			return nil, ErrChallengeNotFound
		}
		return s.completeSecondFactor(ctx, challengeID, st, "backup_code", now)
	}
	_ = s.guard.ReportFailure(ctx, key)
	if s.audit != nil {
		s.audit.SecondFactorFailure(ctx, st.TenantID, st.SubjectID, "backup_code")
	}
	return nil, ErrSecondFactorFailed
}

// GenerateBackupCodes replaces the subject's backup codes and returns the
// plaintext codes exactly once. The subject must already be authenticated.
func (s *GateService) GenerateBackupCodes(ctx context.Context, tenantID, subjectID string, count int) ([]string, error) {
	if count <= 0 {
		count = 10
	}
	now := s.now()
	plain := make([]string, 0, count)
	records := make([]*mfadomain.BackupCode, 0, count)
	for i := 0; i < count; i++ {
		code, err := mfa.GenerateBackupCode()
		if err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash([]byte(code))
		if err != nil {
			return nil, err
		}
		plain = append(plain, code)
		records = append(records, &mfadomain.BackupCode{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			SubjectID: subjectID,
			CodeHash:  hash,
			CreatedAt: now,
		})
	}
	if err := s.backupCodes.DeleteForSubject(ctx, tenantID, subjectID); err != nil {
		return nil, err
	}
	if err := s.backupCodes.Insert(ctx, records); err != nil {
		return nil, err
	}
	return plain, nil
}

// SetPassword stores a new password for the subject. On a password change
// every refresh token and every device trust record is revoked: a stolen
// session must not survive the credential it was minted under.
func (s *GateService) SetPassword(ctx context.Context, tenantID, subjectID, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	now := s.now()
	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	existing, err := s.credentials.Get(ctx, tenantID, subjectID)
	if err != nil {
		return err
	}
	if err := s.credentials.Upsert(ctx, &loginrepo.Credential{
		TenantID:          tenantID,
		SubjectID:         subjectID,
		PasswordHash:      hash,
		PasswordUpdatedAt: now,
	}); err != nil {
		return err
	}
	if existing != nil {
		if _, err := s.ledger.RevokeSubject(ctx, tenantID, subjectID, "password reset"); err != nil {
			return err
		}
		if _, err := s.deviceTrust.RevokeAllForSubject(ctx, tenantID, subjectID, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *GateService) evaluatePolicy(ctx context.Context, tenantID, subjectID, deviceID string, now time.Time) (policyengine.Decision, error) {
	var known, trusted bool
	if deviceID != "" {
		rec, err := s.deviceTrust.Get(ctx, tenantID, subjectID, deviceID)
		if err != nil {
			return policyengine.Decision{}, err
		}
		if rec != nil {
			known = true
			trusted = rec.TrustedAtTime(now)
		}
	}
	var hasBackup bool
	if codes, err := s.backupCodes.ListActive(ctx, tenantID, subjectID); err == nil {
		hasBackup = len(codes) > 0
	}
	return s.policy.EvaluateSecondFactor(ctx, policyengine.Input{
		Tenant: policyengine.TenantInput{
			RequireAlways:       s.tenant.RequireAlways,
			RequireForUntrusted: s.tenant.RequireForUntrusted,
			TrustTTLHours:       s.tenant.TrustTTLHours,
		},
		Device:  policyengine.DeviceInput{ID: deviceID, Known: known, Trusted: trusted},
		Subject: policyengine.SubjectInput{ID: subjectID, HasBackupCodes: hasBackup},
	})
}

func (s *GateService) openChallenge(ctx context.Context, tenantID, subjectID, deviceID string, decision policyengine.Decision, now time.Time) (*Result, error) {
	code, err := mfa.GenerateOTP()
	if err != nil {
		return nil, err
	}
	ch := &mfadomain.Challenge{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		SubjectID: subjectID,
		CodeHash:  mfa.HashOTP(code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.challengeTTL),
	}
	if err := s.challenges.Create(ctx, ch); err != nil {
		return nil, err
	}
	s.attempts.Put(ctx, ch.ID, attempt.State{
		TenantID:      tenantID,
		SubjectID:     subjectID,
		DeviceID:      deviceID,
		TrustDevice:   decision.TrustDeviceAfter,
		TrustTTLHours: decision.TrustTTLHours,
		ExpiresAt:     ch.ExpiresAt,
	})
	if s.sender != nil {
		if err := s.sender.Send(ctx, tenantID, subjectID, code); err != nil {
			return nil, err
		}
	}
	if s.audit != nil {
		s.audit.SecondFactorIssued(ctx, tenantID, subjectID, ch.ID)
	}
	return &Result{Status: StatusSecondFactorRequired, ChallengeID: ch.ID}, nil
}

func (s *GateService) completeSecondFactor(ctx context.Context, challengeID string, st attempt.State, method string, now time.Time) (*Result, error) {
	// The attempt is spent. Dropping the state means this challenge ID can
	// never mint a second token pair, by any method.
	s.attempts.Delete(ctx, challengeID)
	_ = s.guard.ReportSuccess(ctx, guardKey(st.TenantID, st.SubjectID))
	if s.audit != nil {
		s.audit.SecondFactorSuccess(ctx, st.TenantID, st.SubjectID, method)
	}
	if st.TrustDevice && st.DeviceID != "" {
		until := now.Add(time.Duration(st.TrustTTLHours) * time.Hour)
		err := s.deviceTrust.Upsert(ctx, &devicedomain.TrustRecord{
			TenantID:  st.TenantID,
			SubjectID: st.SubjectID,
			DeviceID:  st.DeviceID,
			TrustedAt: now,
			ExpiresAt: until,
		})
		if err == nil && s.audit != nil {
			s.audit.DeviceTrusted(ctx, st.TenantID, st.SubjectID, st.DeviceID, until)
		}
	}
	return s.issueTokens(ctx, st.TenantID, st.SubjectID, st.DeviceID, now)
}

func (s *GateService) issueTokens(ctx context.Context, tenantID, subjectID, deviceID string, now time.Time) (*Result, error) {
	accessToken, accessClaims, err := s.issuer.IssueAccess(subjectID, tenantID, now)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshClaims, err := s.issuer.IssueRefresh(subjectID, tenantID, deviceID, "", 0, now)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Record(ctx, refreshToken, refreshClaims); err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LoginSuccess(ctx, tenantID, subjectID, deviceID)
	}
	return &Result{
		Status:       StatusIssued,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessClaims.ExpiresAt.Time,
	}, nil
}

func (s *GateService) recordFailure(ctx context.Context, tenantID, subjectID, reason string) {
	_ = s.guard.ReportFailure(ctx, guardKey(tenantID, subjectID))
	if s.audit != nil {
		s.audit.LoginFailure(ctx, tenantID, subjectID, reason)
	}
}
