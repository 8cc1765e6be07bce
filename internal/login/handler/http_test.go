package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"auth-token-service/internal/login/service"
	"auth-token-service/internal/server/interceptors"
)

type fakeGate struct {
	loginResult  *service.Result
	loginErr     error
	answerResult *service.Result
	answerErr    error
	codes        []string
	setPwErr     error

	lastTenant  string
	lastSubject string
}

func (f *fakeGate) Login(_ context.Context, tenantID, subjectID, password, deviceID string) (*service.Result, error) {
	f.lastTenant, f.lastSubject = tenantID, subjectID
	return f.loginResult, f.loginErr
}

func (f *fakeGate) AnswerChallenge(_ context.Context, challengeID, code string) (*service.Result, error) {
	return f.answerResult, f.answerErr
}

func (f *fakeGate) RedeemBackupCode(_ context.Context, challengeID, code string) (*service.Result, error) {
	return f.answerResult, f.answerErr
}

func (f *fakeGate) GenerateBackupCodes(_ context.Context, tenantID, subjectID string, count int) ([]string, error) {
	f.lastTenant, f.lastSubject = tenantID, subjectID
	return f.codes, nil
}

func (f *fakeGate) SetPassword(_ context.Context, tenantID, subjectID, newPassword string) error {
	f.lastTenant, f.lastSubject = tenantID, subjectID
	return f.setPwErr
}

func publicRouter(gate Gate) http.Handler {
	r := chi.NewRouter()
	NewHTTP(gate, 0).RegisterPublic(r)
	return r
}

func protectedRouter(gate Gate, tenantID, subjectID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := interceptors.WithIdentity(req.Context(), subjectID, tenantID, "jti-1")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHTTP(gate, 0).RegisterProtected(r)
	return r
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLogin_Issued(t *testing.T) {
	gate := &fakeGate{loginResult: &service.Result{
		Status:       service.StatusIssued,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Unix(1700000000, 0),
	}}
	rec := postJSON(t, publicRouter(gate), "/v1/login",
		`{"tenant_id":"t1","subject_id":"s1","password":"pw","device_id":"d1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != string(service.StatusIssued) || resp.AccessToken != "access" {
		t.Errorf("response = %+v, want issued with tokens", resp)
	}
	if gate.lastTenant != "t1" || gate.lastSubject != "s1" {
		t.Errorf("gate called with (%q, %q), want (t1, s1)", gate.lastTenant, gate.lastSubject)
	}
}

func TestLogin_SecondFactorRequired(t *testing.T) {
	gate := &fakeGate{loginResult: &service.Result{
		Status:      service.StatusSecondFactorRequired,
		ChallengeID: "ch-1",
	}}
	rec := postJSON(t, publicRouter(gate), "/v1/login",
		`{"tenant_id":"t1","subject_id":"s1","password":"pw","device_id":"d1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ChallengeID != "ch-1" || resp.AccessToken != "" {
		t.Errorf("response = %+v, want challenge without tokens", resp)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	rec := postJSON(t, publicRouter(&fakeGate{}), "/v1/login", `{"tenant_id":"t1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLogin_InvalidCredentialsGeneric(t *testing.T) {
	gate := &fakeGate{loginErr: service.ErrInvalidCredentials}
	rec := postJSON(t, publicRouter(gate), "/v1/login",
		`{"tenant_id":"t1","subject_id":"s1","password":"wrong","device_id":"d1"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), genericLoginError) {
		t.Errorf("body = %s, want the generic message", rec.Body.String())
	}
}

func TestLogin_GuardBlocked(t *testing.T) {
	gate := &fakeGate{loginErr: service.ErrTooManyAttempts}
	rec := postJSON(t, publicRouter(gate), "/v1/login",
		`{"tenant_id":"t1","subject_id":"s1","password":"pw","device_id":"d1"}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got == "" {
		t.Error("Retry-After header not set on guard-blocked response")
	}
}

func TestAnswerChallenge_WrongCodeGeneric(t *testing.T) {
	gate := &fakeGate{answerErr: service.ErrSecondFactorFailed}
	rec := postJSON(t, publicRouter(gate), "/v1/login/second-factor",
		`{"challenge_id":"ch-1","code":"000000"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), genericLoginError) {
		t.Errorf("body = %s, want the generic message", rec.Body.String())
	}
}

func TestRotateBackupCodes_ReturnsPlaintextOnce(t *testing.T) {
	gate := &fakeGate{codes: []string{"aaaa-bbbb-cccc", "dddd-eeee-ffff"}}
	rec := postJSON(t, protectedRouter(gate, "t1", "s1"), "/v1/backup-codes/rotate", `{"count":2}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store for plaintext codes", got)
	}
	var resp map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp["backup_codes"]) != 2 {
		t.Errorf("backup_codes = %v, want 2 codes", resp["backup_codes"])
	}
	if gate.lastTenant != "t1" || gate.lastSubject != "s1" {
		t.Errorf("gate called with (%q, %q), want identity from context", gate.lastTenant, gate.lastSubject)
	}
}

func TestSetPassword_WeakRejected(t *testing.T) {
	gate := &fakeGate{setPwErr: service.ErrWeakPassword}
	rec := postJSON(t, protectedRouter(gate, "t1", "s1"), "/v1/password", `{"new_password":"short"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSetPassword_NoIdentity(t *testing.T) {
	r := chi.NewRouter()
	NewHTTP(&fakeGate{}, 0).RegisterProtected(r)
	rec := postJSON(t, r, "/v1/password", `{"new_password":"longenough"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without identity in context", rec.Code)
	}
}
