// Package handler exposes the login gate over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"auth-token-service/internal/httpx"
	"auth-token-service/internal/login/service"
	"auth-token-service/internal/server/interceptors"
)

// genericLoginError is the only failure text login clients ever see. Which
// check failed (unknown subject, wrong password, bad code) stays internal.
const genericLoginError = "invalid credentials"

// Gate is the login surface the handler needs; *service.GateService satisfies it.
type Gate interface {
	Login(ctx context.Context, tenantID, subjectID, password, deviceID string) (*service.Result, error)
	AnswerChallenge(ctx context.Context, challengeID, code string) (*service.Result, error)
	RedeemBackupCode(ctx context.Context, challengeID, code string) (*service.Result, error)
	GenerateBackupCodes(ctx context.Context, tenantID, subjectID string, count int) ([]string, error)
	SetPassword(ctx context.Context, tenantID, subjectID, newPassword string) error
}

type HTTP struct {
	gate       Gate
	retryAfter time.Duration
}

// NewHTTP returns the login handler. retryAfter is advertised on
// guard-blocked responses; zero defaults to 15 minutes.
func NewHTTP(gate Gate, retryAfter time.Duration) *HTTP {
	if retryAfter <= 0 {
		retryAfter = 15 * time.Minute
	}
	return &HTTP{gate: gate, retryAfter: retryAfter}
}

// RegisterPublic mounts the routes callable without a Bearer token.
func (h *HTTP) RegisterPublic(r chi.Router) {
	r.Post("/v1/login", h.login)
	r.Post("/v1/login/second-factor", h.answerChallenge)
	r.Post("/v1/login/backup-code", h.redeemBackupCode)
}

// RegisterProtected mounts the routes that require an authenticated subject.
func (h *HTTP) RegisterProtected(r chi.Router) {
	r.Post("/v1/password", h.setPassword)
	r.Post("/v1/backup-codes/rotate", h.rotateBackupCodes)
}

type loginRequest struct {
	TenantID  string `json:"tenant_id"`
	SubjectID string `json:"subject_id"`
	Password  string `json:"password"`
	DeviceID  string `json:"device_id"`
}

type challengeAnswerRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type loginResponse struct {
	Status       string `json:"status"`
	ChallengeID  string `json:"challenge_id,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

func (h *HTTP) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if req.TenantID == "" || req.SubjectID == "" || req.Password == "" || req.DeviceID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "tenant_id, subject_id, password, and device_id are required")
		return
	}
	res, err := h.gate.Login(r.Context(), req.TenantID, req.SubjectID, req.Password, req.DeviceID)
	if err != nil {
		h.writeGateError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

func (h *HTTP) answerChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeAnswerRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if req.ChallengeID == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "challenge_id and code are required")
		return
	}
	res, err := h.gate.AnswerChallenge(r.Context(), req.ChallengeID, req.Code)
	if err != nil {
		h.writeGateError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

func (h *HTTP) redeemBackupCode(w http.ResponseWriter, r *http.Request) {
	var req challengeAnswerRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if req.ChallengeID == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "challenge_id and code are required")
		return
	}
	res, err := h.gate.RedeemBackupCode(r.Context(), req.ChallengeID, req.Code)
	if err != nil {
		h.writeGateError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

func (h *HTTP) setPassword(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := interceptors.GetTenantID(r.Context())
	subjectID, _ := interceptors.GetSubjectID(r.Context())
	if tenantID == "" || subjectID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, genericLoginError)
		return
	}
	var req struct {
		NewPassword string `json:"new_password"`
	}
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if err := h.gate.SetPassword(r.Context(), tenantID, subjectID, req.NewPassword); err != nil {
		h.writeGateError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (h *HTTP) rotateBackupCodes(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := interceptors.GetTenantID(r.Context())
	subjectID, _ := interceptors.GetSubjectID(r.Context())
	if tenantID == "" || subjectID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, genericLoginError)
		return
	}
	var req struct {
		Count int `json:"count"`
	}
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	codes, err := h.gate.GenerateBackupCodes(r.Context(), tenantID, subjectID, req.Count)
	if err != nil {
		h.writeGateError(w, err)
		return
	}
	// Plaintext codes are shown exactly once; only hashes are stored.
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, map[string][]string{"backup_codes": codes})
}

func toLoginResponse(res *service.Result) loginResponse {
	out := loginResponse{Status: string(res.Status), ChallengeID: res.ChallengeID}
	if res.Status == service.StatusIssued {
		out.AccessToken = res.AccessToken
		out.RefreshToken = res.RefreshToken
		out.ExpiresAt = res.ExpiresAt.Unix()
	}
	return out
}

func (h *HTTP) writeGateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTooManyAttempts):
		w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
		httpx.WriteError(w, http.StatusTooManyRequests, "too many attempts")
	case errors.Is(err, service.ErrWeakPassword):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrChallengeNotFound),
		errors.Is(err, service.ErrSecondFactorFailed):
		httpx.WriteError(w, http.StatusUnauthorized, genericLoginError)
	default:
		httpx.WriteError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	}
}
