// Package server wires the authentication HTTP API: routing, middleware,
// request/response shapes, and error mapping.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ciam-core/backend/internal/audit"
	"ciam-core/backend/internal/devotp"
	"ciam-core/backend/internal/security"
	"ciam-core/backend/internal/server/middleware"
)

// Deps holds the dependencies the router mounts.
type Deps struct {
	Handler  *Handler
	Provider *security.TokenProvider
	// Audit records authenticated requests; nil disables request auditing.
	Audit audit.AuditLogger
	// Health serves GET /healthz; nil mounts a bare 200.
	Health http.Handler
	// DevOTP enables GET /dev/mfa/otp when non-nil. Never set in production.
	DevOTP devotp.Store
}

// NewRouter builds the chi router with the full middleware chain and routes.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Auth(deps.Provider))
	r.Use(middleware.Audit(deps.Audit, map[string]bool{"/healthz": true}))

	h := deps.Handler
	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/mfa/initiate", h.InitiateMfa)
		r.Post("/mfa/verify", h.VerifyMfa)
		r.Post("/mfa/push/respond", h.RespondPush)
		r.Get("/mfa/status", h.MfaStatus)
		r.Post("/device/bind", h.BindDevice)
		r.Post("/compliance/accept", h.AcceptCompliance)
		r.Post("/compliance/decline", h.DeclineCompliance)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.With(middleware.RequireAuth).Post("/logout/all", h.LogoutAll)
	})

	r.Route("/v1/oauth", func(r chi.Router) {
		r.Post("/introspect", h.Introspect)
		r.Post("/revoke", h.Revoke)
	})

	discovery := NewDiscovery(deps.Provider)
	r.Get("/.well-known/openid-configuration", discovery.OpenIDConfiguration)
	r.Get("/.well-known/jwks.json", discovery.JWKS)

	if deps.Health != nil {
		r.Method(http.MethodGet, "/healthz", deps.Health)
	} else {
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}

	if deps.DevOTP != nil {
		r.Get("/dev/mfa/otp", devOTPHandler(deps.DevOTP))
	}

	return r
}

// devOTPHandler returns the stored OTP for a transaction. Dev mode only; the
// route is not mounted otherwise.
func devOTPHandler(store devotp.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID := r.URL.Query().Get("transaction_id")
		if transactionID == "" {
			writeError(w, http.StatusBadRequest, "missing_transaction_id")
			return
		}
		otp, ok := store.Get(r.Context(), transactionID)
		if !ok {
			writeError(w, http.StatusNotFound, "otp_not_found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"transaction_id": transactionID,
			"otp":            otp,
		})
	}
}
