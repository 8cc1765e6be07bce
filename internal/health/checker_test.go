package health

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error { return m.pingErr }

type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error { return m.healthErr }

func TestCheck_AllNilDependencies(t *testing.T) {
	c := NewChecker(nil, nil, nil)
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheck_AllHealthy(t *testing.T) {
	c := NewChecker(&mockPinger{}, nil, &mockPolicyChecker{})
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestCheck_DatabaseDown(t *testing.T) {
	c := NewChecker(&mockPinger{pingErr: errors.New("connection refused")}, nil, &mockPolicyChecker{})
	err := c.Check(context.Background())
	if err == nil {
		t.Fatal("expected error when database ping fails")
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("error = %v, want it to name the database", err)
	}
}

func TestCheck_PolicyDown(t *testing.T) {
	c := NewChecker(&mockPinger{}, nil, &mockPolicyChecker{healthErr: errors.New("rego compile failed")})
	err := c.Check(context.Background())
	if err == nil {
		t.Fatal("expected error when policy check fails")
	}
	if !strings.Contains(err.Error(), "policy") {
		t.Errorf("error = %v, want it to name the policy engine", err)
	}
}
