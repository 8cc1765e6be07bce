package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"auth-token-service/internal/httpx"
	"auth-token-service/internal/keystore"
	loginhandler "auth-token-service/internal/login/handler"
	refreshhandler "auth-token-service/internal/refresh/handler"
	"auth-token-service/internal/server/interceptors"
	"auth-token-service/internal/token"
)

// HTTPDeps holds the HTTP API's dependencies.
type HTTPDeps struct {
	Verifier *token.Verifier
	Keys     *keystore.Store
	Login    *loginhandler.HTTP
	Refresh  *refreshhandler.HTTP
}

// NewHTTPHandler assembles the HTTP API. Public routes (login, refresh
// exchange) sit outside the Bearer middleware; everything else requires a
// valid access token.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Key-store introspection: operational state only, never key material.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Keys != nil {
			httpx.WriteJSON(w, http.StatusOK, deps.Keys.Health())
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if deps.Login != nil {
			deps.Login.RegisterPublic(r)
		}
		if deps.Refresh != nil {
			deps.Refresh.RegisterPublic(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Verifier))
		if deps.Login != nil {
			deps.Login.RegisterProtected(r)
		}
		if deps.Refresh != nil {
			deps.Refresh.RegisterProtected(r)
		}
	})

	return r
}

// BearerAuth validates the Bearer access token and injects the subject's
// identity into the request context. Every rejection carries the same
// generic message.
func BearerAuth(verifier *token.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerFromHeader(r.Header.Get("Authorization"))
			if raw == "" {
				httpx.WriteError(w, http.StatusUnauthorized, token.GenericAuthMessage)
				return
			}
			claims, err := verifier.VerifyAccess(raw, time.Now().UTC())
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, token.GenericAuthMessage)
				return
			}
			ctx := interceptors.WithIdentity(r.Context(), claims.Subject, claims.TenantID, claims.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerFromHeader(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
