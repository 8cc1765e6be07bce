package guard

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGuard_BlocksAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(3, 15*time.Minute)

	for i := 0; i < 3; i++ {
		if ok, _ := g.CheckAllowed(ctx, "t1:alice"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if err := g.ReportFailure(ctx, "t1:alice"); err != nil {
			t.Fatalf("ReportFailure: %v", err)
		}
	}
	if ok, _ := g.CheckAllowed(ctx, "t1:alice"); ok {
		t.Error("key should be blocked after 3 failures")
	}
	// Other keys are unaffected.
	if ok, _ := g.CheckAllowed(ctx, "t1:bob"); !ok {
		t.Error("other key should not be blocked")
	}
}

func TestMemoryGuard_SuccessClearsFailures(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(3, 15*time.Minute)

	for i := 0; i < 3; i++ {
		_ = g.ReportFailure(ctx, "t1:alice")
	}
	if err := g.ReportSuccess(ctx, "t1:alice"); err != nil {
		t.Fatalf("ReportSuccess: %v", err)
	}
	if ok, _ := g.CheckAllowed(ctx, "t1:alice"); !ok {
		t.Error("success should clear the failure window")
	}
}

func TestMemoryGuard_WindowExpires(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(3, 15*time.Minute)
	now := time.Now()
	g.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_ = g.ReportFailure(ctx, "t1:alice")
	}
	if ok, _ := g.CheckAllowed(ctx, "t1:alice"); ok {
		t.Fatal("key should be blocked inside the window")
	}
	now = now.Add(16 * time.Minute)
	if ok, _ := g.CheckAllowed(ctx, "t1:alice"); !ok {
		t.Error("block should lift when the window passes")
	}
}

func TestNoopGuard_AlwaysAllows(t *testing.T) {
	ctx := context.Background()
	g := NoopGuard{}
	for i := 0; i < 10; i++ {
		_ = g.ReportFailure(ctx, "k")
	}
	if ok, _ := g.CheckAllowed(ctx, "k"); !ok {
		t.Error("noop guard must always allow")
	}
}
