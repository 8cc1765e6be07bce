// Package handler exposes the refresh-token ledger over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"auth-token-service/internal/httpx"
	"auth-token-service/internal/refresh/service"
	"auth-token-service/internal/server/interceptors"
	"auth-token-service/internal/token"
)

// Ledger is the refresh surface the handler needs; *service.LedgerService satisfies it.
type Ledger interface {
	Exchange(ctx context.Context, refreshToken string) (*service.ExchangeResult, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeSubject(ctx context.Context, tenantID, subjectID, reason string) (int64, error)
	RevokeDevice(ctx context.Context, tenantID, subjectID, deviceID string) (int64, error)
}

type HTTP struct {
	ledger Ledger
}

func NewHTTP(ledger Ledger) *HTTP {
	return &HTTP{ledger: ledger}
}

// RegisterPublic mounts the routes that authenticate with the refresh token
// itself rather than a Bearer access token.
func (h *HTTP) RegisterPublic(r chi.Router) {
	r.Post("/v1/token/refresh", h.exchange)
	r.Post("/v1/token/revoke", h.revoke)
}

// RegisterProtected mounts the subject-wide revocation routes.
func (h *HTTP) RegisterProtected(r chi.Router) {
	r.Post("/v1/sessions/revoke", h.revokeSessions)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *HTTP) exchange(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	res, err := h.ledger.Exchange(r.Context(), req.RefreshToken)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
		"expires_at":    res.AccessClaims.ExpiresAt.Unix(),
	})
}

func (h *HTTP) revoke(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	if err := h.ledger.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeLedgerError(w, err)
		return
	}
	// Revocation is idempotent; the client only learns that the token is gone.
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (h *HTTP) revokeSessions(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := interceptors.GetTenantID(r.Context())
	subjectID, _ := interceptors.GetSubjectID(r.Context())
	if tenantID == "" || subjectID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, token.GenericAuthMessage)
		return
	}
	var req struct {
		DeviceID string `json:"device_id"`
	}
	if !httpx.ReadJSON(w, r, &req) {
		return
	}
	var (
		n   int64
		err error
	)
	if req.DeviceID != "" {
		n, err = h.ledger.RevokeDevice(r.Context(), tenantID, subjectID, req.DeviceID)
	} else {
		n, err = h.ledger.RevokeSubject(r.Context(), tenantID, subjectID, "subject_requested")
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"revoked": n})
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRotationLimit):
		httpx.WriteError(w, http.StatusUnauthorized, "re-authentication required")
	case errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrReplayDetected):
		// Replay and plain invalidity are indistinguishable to the caller.
		httpx.WriteError(w, http.StatusUnauthorized, token.GenericAuthMessage)
	case errors.Is(err, service.ErrServiceUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		httpx.WriteError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	}
}
