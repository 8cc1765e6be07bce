// Package health aggregates readiness checks for the standard gRPC health
// service: database reachability, signing-key availability, and the policy
// engine.
package health

import (
	"context"
	"fmt"

	"auth-token-service/internal/keystore"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is satisfied by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs all readiness checks. Any nil dependency is skipped, so a
// partially wired service (e.g. no policy engine in tests) still reports.
type Checker struct {
	db     Pinger
	keys   *keystore.Store
	policy PolicyChecker
}

func NewChecker(db Pinger, keys *keystore.Store, policy PolicyChecker) *Checker {
	return &Checker{db: db, keys: keys, policy: policy}
}

// Check returns nil when every wired dependency is ready. The first failing
// check wins; its error names the subsystem.
func (c *Checker) Check(ctx context.Context) error {
	if c.db != nil {
		if err := c.db.PingContext(ctx); err != nil {
			return fmt.Errorf("health: database: %w", err)
		}
	}
	if c.keys != nil {
		h := c.keys.Health()
		if !h.KeysLoaded || h.ActiveKid == "" {
			return fmt.Errorf("health: keystore: no active signing key")
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health: policy engine: %w", err)
		}
	}
	return nil
}
