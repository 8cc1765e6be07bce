// Package guard throttles authentication attempts. The gate consults a
// Guard before verifying anything and reports each outcome back, so
// lockout state always reflects real failures.
package guard

import "context"

// Guard decides whether an authentication attempt for a key may proceed.
// Keys are caller-chosen, typically "tenant:subject" or a client address.
type Guard interface {
	// CheckAllowed reports whether an attempt for key may proceed now.
	CheckAllowed(ctx context.Context, key string) (bool, error)
	// ReportFailure records a failed attempt for key.
	ReportFailure(ctx context.Context, key string) error
	// ReportSuccess clears the failure state for key.
	ReportSuccess(ctx context.Context, key string) error
}

// NoopGuard allows everything. Used when no throttling backend is configured.
type NoopGuard struct{}

func (NoopGuard) CheckAllowed(context.Context, string) (bool, error) { return true, nil }
func (NoopGuard) ReportFailure(context.Context, string) error        { return nil }
func (NoopGuard) ReportSuccess(context.Context, string) error        { return nil }
