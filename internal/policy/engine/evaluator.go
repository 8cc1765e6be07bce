// Package engine decides whether a login needs a second factor. Decisions
// are expressed as Rego policy so operators can tighten them without a
// rebuild.
package engine

import "context"

// Input is the login context the policy sees.
type Input struct {
	Tenant  TenantInput
	Device  DeviceInput
	Subject SubjectInput
}

// TenantInput carries the tenant's second-factor settings.
type TenantInput struct {
	RequireAlways       bool
	RequireForUntrusted bool
	TrustTTLHours       int
}

// DeviceInput describes the presenting device.
type DeviceInput struct {
	ID      string
	Known   bool // a trust record exists, expired or not
	Trusted bool // trust record exists, unexpired, unrevoked
}

// SubjectInput describes the authenticating subject.
type SubjectInput struct {
	ID             string
	HasBackupCodes bool
}

// Decision is the policy outcome for one login.
type Decision struct {
	SecondFactorRequired bool
	TrustDeviceAfter     bool // record device trust once the second factor passes
	TrustTTLHours        int
}

// Evaluator evaluates second-factor policy for a login attempt.
type Evaluator interface {
	EvaluateSecondFactor(ctx context.Context, in Input) (Decision, error)
}
