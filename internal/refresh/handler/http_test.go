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
	"github.com/golang-jwt/jwt/v5"

	"auth-token-service/internal/refresh/service"
	"auth-token-service/internal/server/interceptors"
	"auth-token-service/internal/token"
)

type fakeLedger struct {
	exchangeResult *service.ExchangeResult
	exchangeErr    error
	revokeErr      error
	revokedSubject int64
	revokedDevice  int64

	lastDevice string
}

func (f *fakeLedger) Exchange(_ context.Context, refreshToken string) (*service.ExchangeResult, error) {
	return f.exchangeResult, f.exchangeErr
}

func (f *fakeLedger) Revoke(_ context.Context, refreshToken string) error {
	return f.revokeErr
}

func (f *fakeLedger) RevokeSubject(_ context.Context, tenantID, subjectID, reason string) (int64, error) {
	return f.revokedSubject, nil
}

func (f *fakeLedger) RevokeDevice(_ context.Context, tenantID, subjectID, deviceID string) (int64, error) {
	f.lastDevice = deviceID
	return f.revokedDevice, nil
}

func publicRouter(ledger Ledger) http.Handler {
	r := chi.NewRouter()
	NewHTTP(ledger).RegisterPublic(r)
	return r
}

func protectedRouter(ledger Ledger) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := interceptors.WithIdentity(req.Context(), "s1", "t1", "jti-1")
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHTTP(ledger).RegisterProtected(r)
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

func TestExchange_Success(t *testing.T) {
	exp := time.Unix(1700000900, 0)
	ledger := &fakeLedger{exchangeResult: &service.ExchangeResult{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		AccessClaims: &token.Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		}},
	}}
	rec := postJSON(t, publicRouter(ledger), "/v1/token/refresh", `{"refresh_token":"old"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["access_token"] != "new-access" || resp["refresh_token"] != "new-refresh" {
		t.Errorf("response = %v, want the rotated pair", resp)
	}
	if int64(resp["expires_at"].(float64)) != exp.Unix() {
		t.Errorf("expires_at = %v, want %d", resp["expires_at"], exp.Unix())
	}
}

func TestExchange_ReplayLooksLikeInvalid(t *testing.T) {
	replayRec := postJSON(t, publicRouter(&fakeLedger{exchangeErr: service.ErrReplayDetected}),
		"/v1/token/refresh", `{"refresh_token":"stolen"}`)
	invalidRec := postJSON(t, publicRouter(&fakeLedger{exchangeErr: service.ErrInvalidRefreshToken}),
		"/v1/token/refresh", `{"refresh_token":"garbage"}`)

	if replayRec.Code != http.StatusUnauthorized || invalidRec.Code != http.StatusUnauthorized {
		t.Fatalf("status = (%d, %d), want both 401", replayRec.Code, invalidRec.Code)
	}
	if replayRec.Body.String() != invalidRec.Body.String() {
		t.Errorf("replay body %q differs from invalid body %q; responses must be indistinguishable",
			replayRec.Body.String(), invalidRec.Body.String())
	}
}

func TestExchange_RotationLimit(t *testing.T) {
	rec := postJSON(t, publicRouter(&fakeLedger{exchangeErr: service.ErrRotationLimit}),
		"/v1/token/refresh", `{"refresh_token":"worn-out"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "re-authentication required") {
		t.Errorf("body = %s, want re-authentication hint", rec.Body.String())
	}
}

func TestExchange_ServiceUnavailable(t *testing.T) {
	rec := postJSON(t, publicRouter(&fakeLedger{exchangeErr: service.ErrServiceUnavailable}),
		"/v1/token/refresh", `{"refresh_token":"x"}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestExchange_MissingToken(t *testing.T) {
	rec := postJSON(t, publicRouter(&fakeLedger{}), "/v1/token/refresh", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRevoke_Idempotent(t *testing.T) {
	rec := postJSON(t, publicRouter(&fakeLedger{}), "/v1/token/revoke", `{"refresh_token":"any"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRevokeSessions_SubjectWide(t *testing.T) {
	ledger := &fakeLedger{revokedSubject: 4}
	rec := postJSON(t, protectedRouter(ledger), "/v1/sessions/revoke", `{}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["revoked"] != 4 {
		t.Errorf("revoked = %d, want 4", resp["revoked"])
	}
}

func TestRevokeSessions_SingleDevice(t *testing.T) {
	ledger := &fakeLedger{revokedDevice: 1}
	rec := postJSON(t, protectedRouter(ledger), "/v1/sessions/revoke", `{"device_id":"d2"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ledger.lastDevice != "d2" {
		t.Errorf("device = %q, want d2", ledger.lastDevice)
	}
}

func TestRevokeSessions_NoIdentity(t *testing.T) {
	r := chi.NewRouter()
	NewHTTP(&fakeLedger{}).RegisterProtected(r)
	rec := postJSON(t, r, "/v1/sessions/revoke", `{}`)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without identity", rec.Code)
	}
}
