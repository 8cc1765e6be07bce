package domain

import "time"

// Severity grades an audit entry. High-severity entries feed alerting.
type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityWarn Severity = "warn"
	SeverityHigh Severity = "high"
)

// Auth event actions.
const (
	ActionLoginSuccess        = "login_success"
	ActionLoginFailure        = "login_failure"
	ActionLoginBlocked        = "login_blocked"
	ActionSecondFactorIssued  = "second_factor_issued"
	ActionSecondFactorSuccess = "second_factor_success"
	ActionSecondFactorFailure = "second_factor_failure"
	ActionRefreshRotated      = "refresh_rotated"
	ActionReplayDetected      = "replay_detected"
	ActionLineageRevoked      = "lineage_revoked"
	ActionDeviceTrusted       = "device_trusted"
	ActionDeviceRevoked       = "device_revoked"
	ActionKeyRotated          = "key_rotated"
)

// Entry represents one audit event.
type Entry struct {
	ID         int64
	OccurredAt time.Time
	TenantID   string
	SubjectID  string
	Action     string
	Severity   Severity
	Detail     map[string]any
}
