package domain

import "time"

// TrustRecord marks a device as trusted for a subject in a tenant. A trusted
// device skips the second factor until the trust window closes or the record
// is revoked.
type TrustRecord struct {
	TenantID  string
	SubjectID string
	DeviceID  string
	TrustedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// TrustedAtTime reports whether the record grants trust at the given time.
func (r *TrustRecord) TrustedAtTime(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}
