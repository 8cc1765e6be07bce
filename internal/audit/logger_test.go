package audit

import (
	"context"
	"sync"
	"testing"

	"auth-token-service/internal/audit/domain"
	refreshdomain "auth-token-service/internal/refresh/domain"
)

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.Entry
	failErr error
}

func (r *memAuditRepo) Create(ctx context.Context, e *domain.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *memAuditRepo) ListBySubject(ctx context.Context, tenantID, subjectID string, limit, offset int32) ([]*domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Entry
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memEmitter struct {
	mu      sync.Mutex
	entries []*domain.Entry
}

func (m *memEmitter) Emit(ctx context.Context, e *domain.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func TestLogger_PersistsAndEmits(t *testing.T) {
	repo := &memAuditRepo{}
	emitter := &memEmitter{}
	l := NewLogger(repo, emitter)

	l.LoginSuccess(context.Background(), "tenant-1", "user-1", "dev-1")

	if len(repo.entries) != 1 {
		t.Fatalf("persisted entries = %d, want 1", len(repo.entries))
	}
	if len(emitter.entries) != 1 {
		t.Fatalf("emitted entries = %d, want 1", len(emitter.entries))
	}
	e := repo.entries[0]
	if e.Action != domain.ActionLoginSuccess || e.Severity != domain.SeverityInfo {
		t.Errorf("entry = %s/%s", e.Action, e.Severity)
	}
	if e.Detail["device_id"] != "dev-1" {
		t.Errorf("detail device_id = %v", e.Detail["device_id"])
	}
}

func TestLogger_ReplayIsHighSeverity(t *testing.T) {
	repo := &memAuditRepo{}
	l := NewLogger(repo, nil)

	rec := &refreshdomain.RefreshRecord{TenantID: "tenant-1", SubjectID: "user-1", LineageID: "lin-1", DeviceID: "dev-1"}
	l.ReplayDetected(context.Background(), rec, 3)

	if len(repo.entries) != 1 {
		t.Fatalf("persisted entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Severity != domain.SeverityHigh {
		t.Errorf("severity = %s, want high", e.Severity)
	}
	if e.Detail["revoked"] != 3 && e.Detail["revoked"] != int64(3) {
		t.Errorf("detail revoked = %v", e.Detail["revoked"])
	}
}

func TestLogger_RepoFailureDoesNotPanic(t *testing.T) {
	repo := &memAuditRepo{failErr: context.DeadlineExceeded}
	l := NewLogger(repo, nil)
	// Must not panic or propagate the error.
	l.LoginFailure(context.Background(), "tenant-1", "user-1", "bad password")
}

func TestLogger_NilSinks(t *testing.T) {
	l := NewLogger(nil, nil)
	l.LoginSuccess(context.Background(), "tenant-1", "user-1", "dev-1")
}
