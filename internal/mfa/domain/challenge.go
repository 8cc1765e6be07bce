package domain

import "time"

// MaxChallengeAttempts is how many wrong codes a challenge absorbs before it
// is dead.
const MaxChallengeAttempts = 5

// Challenge represents a pending OTP challenge. Only the code's hash is stored.
type Challenge struct {
	ID         string
	TenantID   string
	SubjectID  string
	CodeHash   string
	Attempts   int
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// Answerable reports whether the challenge can still accept an answer.
func (c *Challenge) Answerable(now time.Time) bool {
	return c.ConsumedAt == nil && c.Attempts < MaxChallengeAttempts && now.Before(c.ExpiresAt)
}

// BackupCode is one single-use recovery code. The hash is bcrypt: backup
// codes are long-lived, unlike OTP codes.
type BackupCode struct {
	ID        string
	TenantID  string
	SubjectID string
	CodeHash  string
	CreatedAt time.Time
	UsedAt    *time.Time
}
