package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQueryPrefix = "data.authsvc.second_factor"

// Default Rego policy: untrusted devices need a second factor, trust is
// recorded after it passes, and the tenant's trust TTL wins when set.
const defaultRegoPolicy = `package authsvc.second_factor

default required = false
default trust_device_after = true
default trust_ttl_hours = 720

required if {
	input.tenant.require_always
}

required if {
	not input.device.trusted
	input.tenant.require_for_untrusted
}

trust_ttl_hours = input.tenant.trust_ttl_hours if {
	input.tenant.trust_ttl_hours > 0
}
`

// OPAEvaluator evaluates second-factor policy with in-process OPA Rego.
type OPAEvaluator struct {
	compiler *ast.Compiler
}

// NewOPAEvaluator compiles the given Rego source, or the built-in default
// policy when source is empty. Compilation failures surface here, at startup.
func NewOPAEvaluator(source string) (*OPAEvaluator, error) {
	if source == "" {
		source = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"second_factor.rego": source})
	if err != nil {
		return nil, fmt.Errorf("compile second-factor policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler}, nil
}

// HealthCheck verifies the compiled policy evaluates against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.EvaluateSecondFactor(ctx, Input{})
	return err
}

// EvaluateSecondFactor evaluates the policy for the login. On a query
// failure it falls back to the fail-safe decision: second factor required.
func (e *OPAEvaluator) EvaluateSecondFactor(ctx context.Context, in Input) (Decision, error) {
	input := map[string]interface{}{
		"tenant": map[string]interface{}{
			"require_always":       in.Tenant.RequireAlways,
			"require_for_untrusted": in.Tenant.RequireForUntrusted,
			"trust_ttl_hours":      in.Tenant.TrustTTLHours,
		},
		"device": map[string]interface{}{
			"id":      in.Device.ID,
			"known":   in.Device.Known,
			"trusted": in.Device.Trusted,
		},
		"subject": map[string]interface{}{
			"id":               in.Subject.ID,
			"has_backup_codes": in.Subject.HasBackupCodes,
		},
	}

	out := Decision{SecondFactorRequired: true, TrustDeviceAfter: true, TrustTTLHours: 720}

	required, err := e.queryBool(ctx, policyQueryPrefix+".required", input)
	if err != nil {
		log.Printf("policy: second-factor query failed: %v, requiring second factor", err)
		return out, nil
	}
	out.SecondFactorRequired = required

	if v, err := e.queryBool(ctx, policyQueryPrefix+".trust_device_after", input); err == nil {
		out.TrustDeviceAfter = v
	}
	if v, err := e.queryInt(ctx, policyQueryPrefix+".trust_ttl_hours", input); err == nil && v > 0 {
		out.TrustTTLHours = v
	}
	return out, nil
}

func (e *OPAEvaluator) queryBool(ctx context.Context, query string, input map[string]interface{}) (bool, error) {
	v, err := e.query(ctx, query, input)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("query %s returned %T, want bool", query, v)
	}
	return b, nil
}

func (e *OPAEvaluator) queryInt(ctx context.Context, query string, input map[string]interface{}) (int, error) {
	v, err := e.query(ctx, query, input)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case interface{ Int64() (int64, error) }: // json.Number
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("query %s returned %T, want number", query, v)
	}
}

func (e *OPAEvaluator) query(ctx context.Context, query string, input map[string]interface{}) (interface{}, error) {
	q := rego.New(
		rego.Query(query),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, fmt.Errorf("query %s returned no result", query)
	}
	return rs[0].Expressions[0].Value, nil
}
