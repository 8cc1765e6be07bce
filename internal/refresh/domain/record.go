// Package domain holds the refresh-token ledger types.
package domain

import "time"

// Status is the lifecycle state of a ledger record. A record moves from
// active to exactly one of rotated or revoked and never back.
type Status string

const (
	StatusActive  Status = "active"
	StatusRotated Status = "rotated"
	StatusRevoked Status = "revoked"
)

// RefreshRecord is one refresh token's ledger entry, keyed by the SHA-256
// hash of the token. The raw token is never stored.
type RefreshRecord struct {
	TokenHash  string
	SubjectID  string
	TenantID   string
	DeviceID   string
	LineageID  string
	ParentHash string // hash of the token this one was rotated from; empty for a login root
	UseCount   int    // rotation depth within the lineage
	Status     Status
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RotatedAt  *time.Time
	RevokedAt  *time.Time
}

// Usable reports whether the record can still be exchanged at the given time.
func (r *RefreshRecord) Usable(now time.Time) bool {
	return r.Status == StatusActive && now.Before(r.ExpiresAt)
}
