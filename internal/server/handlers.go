package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	compliancedomain "ciam-core/backend/internal/compliance/domain"
	identityservice "ciam-core/backend/internal/identity/service"
	mfadomain "ciam-core/backend/internal/mfa/domain"
	mfaservice "ciam-core/backend/internal/mfa/service"
	"ciam-core/backend/internal/server/middleware"
	tokendomain "ciam-core/backend/internal/token/domain"
	tokenservice "ciam-core/backend/internal/token/service"
)

// refreshCookieName is the HTTP-only cookie the refresh token travels in for
// browser clients. Non-browser clients use the refresh_token response field.
const refreshCookieName = "ciam_refresh"

// AuthFlow is the slice of the auth orchestrator the HTTP handlers use.
type AuthFlow interface {
	Login(ctx context.Context, req identityservice.LoginRequest) (*identityservice.Outcome, error)
	InitiateMfa(ctx context.Context, contextID, method string) (*identityservice.Outcome, error)
	VerifyMfa(ctx context.Context, contextID, transactionID, code string) (*identityservice.Outcome, error)
	AcceptCompliance(ctx context.Context, contextID, transactionID, documentID string) (*identityservice.Outcome, error)
	DeclineCompliance(ctx context.Context, contextID, transactionID, documentID string) (*identityservice.Outcome, error)
	BindDevice(ctx context.Context, contextID, transactionID string, consent bool) (*identityservice.Outcome, error)
	Refresh(ctx context.Context, refreshToken string) (*tokendomain.TokenSet, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutAll(ctx context.Context, subjectID string) error
}

// MfaGateway is the slice of the MFA manager used outside the orchestrated
// flow: the push gateway webhook and client status polling.
type MfaGateway interface {
	RespondPush(ctx context.Context, transactionID string, approve bool) (*mfadomain.Transaction, error)
	GetStatus(ctx context.Context, contextID string) (*mfaservice.TransactionStatus, error)
}

// TokenEndpoint is the slice of the token service behind /v1/oauth.
type TokenEndpoint interface {
	Introspect(ctx context.Context, token string) (*tokenservice.Introspection, error)
	RevokeRefresh(ctx context.Context, refreshToken string) error
}

// Handler serves the authentication HTTP API.
type Handler struct {
	flow          AuthFlow
	mfa           MfaGateway
	tokens        TokenEndpoint
	refreshTTL    time.Duration
	secureCookies bool
	now           func() time.Time
}

// NewHandler returns the HTTP handler set. secureCookies marks the refresh
// cookie Secure; set it in production.
func NewHandler(flow AuthFlow, mfa MfaGateway, tokens TokenEndpoint, refreshTTL time.Duration, secureCookies bool) *Handler {
	return &Handler{
		flow:          flow,
		mfa:           mfa,
		tokens:        tokens,
		refreshTTL:    refreshTTL,
		secureCookies: secureCookies,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// outcomeResponse is the JSON shape of every step in the login flow. step
// tells the client what to do next; the other fields are step-specific.
type outcomeResponse struct {
	Step        string               `json:"step"`
	ContextID   string               `json:"context_id,omitempty"`
	MfaMethods  []string             `json:"mfa_methods,omitempty"`
	Transaction *transactionResponse `json:"transaction,omitempty"`
	Documents   []documentResponse   `json:"documents,omitempty"`

	AccessToken   string `json:"access_token,omitempty"`
	IdentityToken string `json:"id_token,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	TokenType     string `json:"token_type,omitempty"`
	ExpiresIn     int64  `json:"expires_in,omitempty"`
}

type transactionResponse struct {
	TransactionID string    `json:"transaction_id"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	DisplayNumber string    `json:"display_number,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	RetryAfter    int       `json:"retry_after,omitempty"`
}

type documentResponse struct {
	DocumentID string `json:"document_id"`
	Version    int    `json:"version"`
	Mandatory  bool   `json:"mandatory"`
}

func transactionJSON(t *mfadomain.Transaction) *transactionResponse {
	if t == nil {
		return nil
	}
	return &transactionResponse{
		TransactionID: t.ID,
		Method:        string(t.Method),
		Status:        string(t.Status),
		DisplayNumber: t.DisplayNumber,
		ExpiresAt:     t.ExpiresAt,
	}
}

func documentsJSON(docs []*compliancedomain.Document) []documentResponse {
	if len(docs) == 0 {
		return nil
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentResponse{DocumentID: d.ID, Version: d.Version, Mandatory: d.Mandatory})
	}
	return out
}

// writeOutcome renders a flow outcome. On SUCCESS the refresh token is also
// set as an HTTP-only cookie for browser clients.
func (h *Handler) writeOutcome(w http.ResponseWriter, out *identityservice.Outcome) {
	resp := outcomeResponse{
		Step:        string(out.Step),
		ContextID:   out.ContextID,
		MfaMethods:  out.MfaMethods,
		Transaction: transactionJSON(out.Transaction),
		Documents:   documentsJSON(out.Documents),
	}
	if out.Step == identityservice.StepSuccess && out.Tokens != nil {
		h.setRefreshCookie(w, out.Tokens.RefreshToken)
		resp.AccessToken = out.Tokens.AccessToken
		resp.IdentityToken = out.Tokens.IdentityToken
		resp.RefreshToken = out.Tokens.RefreshToken
		resp.TokenType = out.Tokens.TokenType
		resp.ExpiresIn = int64(out.Tokens.ExpiresAt.Sub(h.now()).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/v1/auth",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body")
		return false
	}
	return true
}

// Login handles POST /v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username          string `json:"username"`
		Password          string `json:"password"`
		DeviceFingerprint string `json:"device_fingerprint"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.flow.Login(r.Context(), identityservice.LoginRequest{
		Username:          req.Username,
		Password:          req.Password,
		DeviceFingerprint: req.DeviceFingerprint,
		ClientIP:          middleware.IPFromContext(r.Context()),
		UserAgent:         r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeOutcome(w, out)
}

// InitiateMfa handles POST /v1/auth/mfa/initiate.
func (h *Handler) InitiateMfa(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContextID string `json:"context_id"`
		Method    string `json:"method"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.flow.InitiateMfa(r.Context(), req.ContextID, req.Method)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeOutcome(w, out)
}

// VerifyMfa handles POST /v1/auth/mfa/verify. For sms/voice the body carries
// the code; for push the code is empty and the current push resolution decides.
func (h *Handler) VerifyMfa(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContextID     string `json:"context_id"`
		TransactionID string `json:"transaction_id"`
		Code          string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.flow.VerifyMfa(r.Context(), req.ContextID, req.TransactionID, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeOutcome(w, out)
}

// RespondPush handles POST /v1/auth/mfa/push/respond, the webhook the push
// gateway calls with the subject's decision. First response wins.
func (h *Handler) RespondPush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string `json:"transaction_id"`
		Approve       bool   `json:"approve"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := h.mfa.RespondPush(r.Context(), req.TransactionID, req.Approve)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"transaction_id": tx.ID,
		"status":         string(tx.Status),
	})
}

// MfaStatus handles GET /v1/auth/mfa/status?context_id=. Non-terminal
// transactions carry a Retry-After poll hint.
func (h *Handler) MfaStatus(w http.ResponseWriter, r *http.Request) {
	contextID := r.URL.Query().Get("context_id")
	if contextID == "" {
		writeError(w, http.StatusBadRequest, "missing_context_id")
		return
	}
	st, err := h.mfa.GetStatus(r.Context(), contextID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := transactionJSON(st.Transaction)
	resp.RetryAfter = st.RetryAfter
	if st.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(st.RetryAfter))
	}
	writeJSON(w, http.StatusOK, resp)
}

// BindDevice handles POST /v1/auth/device/bind.
func (h *Handler) BindDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContextID     string `json:"context_id"`
		TransactionID string `json:"transaction_id"`
		Consent       bool   `json:"consent"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.flow.BindDevice(r.Context(), req.ContextID, req.TransactionID, req.Consent)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeOutcome(w, out)
}

// AcceptCompliance handles POST /v1/auth/compliance/accept.
func (h *Handler) AcceptCompliance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContextID     string `json:"context_id"`
		TransactionID string `json:"transaction_id"`
		DocumentID    string `json:"document_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.flow.AcceptCompliance(r.Context(), req.ContextID, req.TransactionID, req.DocumentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeOutcome(w, out)
}

// DeclineCompliance handles POST /v1/auth/compliance/decline. Only optional
// documents can be declined, and only for the current login.
func (h *Handler) DeclineCompliance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContextID     string `json:"context_id"`
		TransactionID string `json:"transaction_id"`
		DocumentID    string `json:"document_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.flow.DeclineCompliance(r.Context(), req.ContextID, req.TransactionID, req.DocumentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.writeOutcome(w, out)
}

// Refresh handles POST /v1/auth/refresh. The refresh token comes from the
// HTTP-only cookie or, for non-browser clients, the request body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(refreshCookieName); err == nil {
		token = c.Value
	}
	if token == "" {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if !decodeBody(w, r, &req) {
				return
			}
		}
		token = req.RefreshToken
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}
	set, err := h.flow.Refresh(r.Context(), token)
	if err != nil {
		h.clearRefreshCookie(w)
		writeServiceError(w, err)
		return
	}
	h.setRefreshCookie(w, set.RefreshToken)
	writeJSON(w, http.StatusOK, outcomeResponse{
		Step:          string(identityservice.StepSuccess),
		AccessToken:   set.AccessToken,
		IdentityToken: set.IdentityToken,
		RefreshToken:  set.RefreshToken,
		TokenType:     set.TokenType,
		ExpiresIn:     int64(set.ExpiresAt.Sub(h.now()).Seconds()),
	})
}

// Logout handles POST /v1/auth/logout. The session comes from the Bearer
// token when present, else from the refresh cookie. Always clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := middleware.GetSessionID(r.Context())
	if sessionID == "" {
		if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
			if in, err := h.tokens.Introspect(r.Context(), c.Value); err == nil && in.Active {
				sessionID = in.SessionID
			}
		}
	}
	if err := h.flow.Logout(r.Context(), sessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /v1/auth/logout/all. Mounted behind RequireAuth, so
// the subject always comes from a validated Bearer token. Ends every session
// of the subject on every device.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	subjectID, _ := middleware.GetSubjectID(r.Context())
	if err := h.flow.LogoutAll(r.Context(), subjectID); err != nil {
		writeServiceError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Introspect handles POST /v1/oauth/introspect (RFC 7662). The response is
// always 200; inactive or unparseable tokens report active=false.
func (h *Handler) Introspect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	token := r.PostFormValue("token")
	in, err := h.tokens.Introspect(r.Context(), token)
	if err != nil || in == nil || !in.Active {
		writeJSON(w, http.StatusOK, map[string]bool{"active": false})
		return
	}
	resp := map[string]any{
		"active":    true,
		"token_use": in.TokenUse,
		"sub":       in.SubjectID,
		"sid":       in.SessionID,
		"exp":       in.ExpiresAt.Unix(),
	}
	if in.Username != "" {
		resp["username"] = in.Username
	}
	writeJSON(w, http.StatusOK, resp)
}

// Revoke handles POST /v1/oauth/revoke (RFC 7009). Revocation of an unknown
// or already revoked token still returns 200.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body")
		return
	}
	_ = h.tokens.RevokeRefresh(r.Context(), r.PostFormValue("token"))
	w.WriteHeader(http.StatusOK)
}
