package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	complianceservice "ciam-core/backend/internal/compliance/service"
	"ciam-core/backend/internal/devotp"
	identityservice "ciam-core/backend/internal/identity/service"
	mfadomain "ciam-core/backend/internal/mfa/domain"
	mfaservice "ciam-core/backend/internal/mfa/service"
	"ciam-core/backend/internal/security"
	tokendomain "ciam-core/backend/internal/token/domain"
	tokenservice "ciam-core/backend/internal/token/service"
)

type fakeFlow struct {
	loginOut   *identityservice.Outcome
	loginErr   error
	lastLogin  identityservice.LoginRequest
	verifyOut  *identityservice.Outcome
	verifyErr  error
	refreshSet *tokendomain.TokenSet
	refreshErr error
	lastToken  string
	loggedOut  []string

	declined     []string
	loggedOutAll []string
}

func (f *fakeFlow) Login(ctx context.Context, req identityservice.LoginRequest) (*identityservice.Outcome, error) {
	f.lastLogin = req
	return f.loginOut, f.loginErr
}

func (f *fakeFlow) InitiateMfa(ctx context.Context, contextID, method string) (*identityservice.Outcome, error) {
	return f.verifyOut, f.verifyErr
}

func (f *fakeFlow) VerifyMfa(ctx context.Context, contextID, transactionID, code string) (*identityservice.Outcome, error) {
	return f.verifyOut, f.verifyErr
}

func (f *fakeFlow) AcceptCompliance(ctx context.Context, contextID, transactionID, documentID string) (*identityservice.Outcome, error) {
	return f.verifyOut, f.verifyErr
}

func (f *fakeFlow) DeclineCompliance(ctx context.Context, contextID, transactionID, documentID string) (*identityservice.Outcome, error) {
	f.declined = append(f.declined, documentID)
	return f.verifyOut, f.verifyErr
}

func (f *fakeFlow) BindDevice(ctx context.Context, contextID, transactionID string, consent bool) (*identityservice.Outcome, error) {
	return f.verifyOut, f.verifyErr
}

func (f *fakeFlow) Refresh(ctx context.Context, refreshToken string) (*tokendomain.TokenSet, error) {
	f.lastToken = refreshToken
	return f.refreshSet, f.refreshErr
}

func (f *fakeFlow) Logout(ctx context.Context, sessionID string) error {
	f.loggedOut = append(f.loggedOut, sessionID)
	return nil
}

func (f *fakeFlow) LogoutAll(ctx context.Context, subjectID string) error {
	f.loggedOutAll = append(f.loggedOutAll, subjectID)
	return nil
}

type fakeMfaGateway struct {
	respondTx  *mfadomain.Transaction
	respondErr error
	status     *mfaservice.TransactionStatus
	statusErr  error
}

func (f *fakeMfaGateway) RespondPush(ctx context.Context, transactionID string, approve bool) (*mfadomain.Transaction, error) {
	return f.respondTx, f.respondErr
}

func (f *fakeMfaGateway) GetStatus(ctx context.Context, contextID string) (*mfaservice.TransactionStatus, error) {
	return f.status, f.statusErr
}

type fakeTokenEndpoint struct {
	introspection *tokenservice.Introspection
	revoked       []string
}

func (f *fakeTokenEndpoint) Introspect(ctx context.Context, token string) (*tokenservice.Introspection, error) {
	return f.introspection, nil
}

func (f *fakeTokenEndpoint) RevokeRefresh(ctx context.Context, refreshToken string) error {
	f.revoked = append(f.revoked, refreshToken)
	return nil
}

type serverFixture struct {
	flow     *fakeFlow
	mfa      *fakeMfaGateway
	tokens   *fakeTokenEndpoint
	provider *security.TokenProvider
	router   http.Handler
}

func newFixture(t *testing.T, devStore devotp.Store) *serverFixture {
	t.Helper()
	provider, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	f := &serverFixture{
		flow:     &fakeFlow{},
		mfa:      &fakeMfaGateway{},
		tokens:   &fakeTokenEndpoint{},
		provider: provider,
	}
	handler := NewHandler(f.flow, f.mfa, f.tokens, 720*time.Hour, false)
	f.router = NewRouter(Deps{
		Handler:  handler,
		Provider: provider,
		DevOTP:   devStore,
	})
	return f
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func successOutcome() *identityservice.Outcome {
	return &identityservice.Outcome{
		Step: identityservice.StepSuccess,
		Tokens: &tokendomain.TokenSet{
			AccessToken:   "access.jwt",
			IdentityToken: "identity.jwt",
			RefreshToken:  "rec-1.secret",
			TokenType:     "Bearer",
			ExpiresAt:     time.Now().UTC().Add(15 * time.Minute),
		},
	}
}

func TestLogin_Success_SetsRefreshCookie(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.loginOut = successOutcome()

	w := postJSON(t, f.router, "/v1/auth/login", map[string]string{
		"username": "alice", "password": "pw", "device_fingerprint": "fp-1",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["step"] != "SUCCESS" || body["access_token"] != "access.jwt" {
		t.Errorf("body = %v", body)
	}
	cookie := findCookie(w, refreshCookieName)
	if cookie == nil {
		t.Fatal("refresh cookie not set")
	}
	if cookie.Value != "rec-1.secret" || !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie = %+v", cookie)
	}
	if f.flow.lastLogin.Username != "alice" || f.flow.lastLogin.DeviceFingerprint != "fp-1" {
		t.Errorf("login request = %+v", f.flow.lastLogin)
	}
}

func TestLogin_ForwardsClientIP(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.loginOut = successOutcome()

	payload, _ := json.Marshal(map[string]string{"username": "alice", "password": "pw"})
	r := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(payload))
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	f.router.ServeHTTP(httptest.NewRecorder(), r)

	if f.flow.lastLogin.ClientIP != "203.0.113.9" {
		t.Errorf("client ip = %q, want 203.0.113.9", f.flow.lastLogin.ClientIP)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.loginErr = identityservice.ErrInvalidCredentials

	w := postJSON(t, f.router, "/v1/auth/login", map[string]string{"username": "alice", "password": "bad"})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if body := decode(t, w); body["error"] != "invalid_credentials" {
		t.Errorf("body = %v", body)
	}
}

func TestLogin_LockedAccount(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.loginErr = identityservice.ErrAccountLocked

	w := postJSON(t, f.router, "/v1/auth/login", map[string]string{"username": "bob", "password": "pw"})

	if w.Code != http.StatusLocked {
		t.Errorf("status = %d, want 423", w.Code)
	}
}

func TestLogin_MfaRequired(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.loginOut = &identityservice.Outcome{
		Step:       identityservice.StepMfaRequired,
		ContextID:  "lc-1",
		MfaMethods: []string{"sms", "voice", "push"},
	}

	w := postJSON(t, f.router, "/v1/auth/login", map[string]string{"username": "alice", "password": "pw"})

	body := decode(t, w)
	if body["step"] != "MFA_REQUIRED" || body["context_id"] != "lc-1" {
		t.Errorf("body = %v", body)
	}
	if methods := body["mfa_methods"].([]any); len(methods) != 3 {
		t.Errorf("mfa_methods = %v", methods)
	}
	if findCookie(w, refreshCookieName) != nil {
		t.Error("refresh cookie must not be set before SUCCESS")
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	f := newFixture(t, nil)

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestVerifyMfa_InvalidCode(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.verifyErr = mfaservice.ErrInvalidCode

	w := postJSON(t, f.router, "/v1/auth/mfa/verify", map[string]string{
		"context_id": "lc-1", "transaction_id": "tx-1", "code": "000000",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if body := decode(t, w); body["error"] != "invalid_code" {
		t.Errorf("body = %v", body)
	}
}

func TestVerifyMfa_PushPending(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.verifyErr = identityservice.ErrMfaNotApproved

	w := postJSON(t, f.router, "/v1/auth/mfa/verify", map[string]string{
		"context_id": "lc-1", "transaction_id": "tx-1",
	})

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if body := decode(t, w); body["error"] != "mfa_pending" {
		t.Errorf("body = %v", body)
	}
}

func TestRespondPush(t *testing.T) {
	f := newFixture(t, nil)
	f.mfa.respondTx = &mfadomain.Transaction{ID: "tx-1", Status: mfadomain.StatusApproved}

	w := postJSON(t, f.router, "/v1/auth/mfa/push/respond", map[string]any{
		"transaction_id": "tx-1", "approve": true,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["status"] != "APPROVED" {
		t.Errorf("body = %v", body)
	}
}

func TestRespondPush_AlreadyResolved(t *testing.T) {
	f := newFixture(t, nil)
	f.mfa.respondErr = mfaservice.ErrAlreadyResolved

	w := postJSON(t, f.router, "/v1/auth/mfa/push/respond", map[string]any{
		"transaction_id": "tx-1", "approve": false,
	})

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestMfaStatus_SetsRetryAfter(t *testing.T) {
	f := newFixture(t, nil)
	f.mfa.status = &mfaservice.TransactionStatus{
		Transaction: &mfadomain.Transaction{
			ID:            "tx-1",
			Method:        mfadomain.MethodPush,
			Status:        mfadomain.StatusPending,
			DisplayNumber: "42",
			ExpiresAt:     time.Now().UTC().Add(time.Minute),
		},
		RetryAfter: 3,
	}

	r := httptest.NewRequest(http.MethodGet, "/v1/auth/mfa/status?context_id=lc-1", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "3" {
		t.Errorf("Retry-After = %q, want 3", got)
	}
	body := decode(t, w)
	if body["status"] != "PENDING" || body["display_number"] != "42" {
		t.Errorf("body = %v", body)
	}
}

func TestMfaStatus_MissingContextID(t *testing.T) {
	f := newFixture(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/v1/auth/mfa/status", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRefresh_FromCookie(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.refreshSet = &tokendomain.TokenSet{
		AccessToken:  "access.2",
		RefreshToken: "rec-2.secret",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().UTC().Add(15 * time.Minute),
	}

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "rec-1.secret"})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if f.flow.lastToken != "rec-1.secret" {
		t.Errorf("rotated token = %q", f.flow.lastToken)
	}
	cookie := findCookie(w, refreshCookieName)
	if cookie == nil || cookie.Value != "rec-2.secret" {
		t.Errorf("cookie = %+v", cookie)
	}
}

func TestRefresh_ReuseClearsCookie(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.refreshErr = tokenservice.ErrRefreshReuse

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	r.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "rec-1.secret"})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if body := decode(t, w); body["error"] != "refresh_token_reused" {
		t.Errorf("body = %v", body)
	}
	cookie := findCookie(w, refreshCookieName)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Errorf("cookie not cleared: %+v", cookie)
	}
}

func TestRefresh_MissingToken(t *testing.T) {
	f := newFixture(t, nil)

	w := postJSON(t, f.router, "/v1/auth/refresh", map[string]string{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestLogout_WithBearerToken(t *testing.T) {
	f := newFixture(t, nil)
	token, _, _, err := f.provider.IssueAccess("sess-1", "sub-1", []string{"customer"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if len(f.flow.loggedOut) != 1 || f.flow.loggedOut[0] != "sess-1" {
		t.Errorf("logged out sessions = %v", f.flow.loggedOut)
	}
}

func TestLogout_WithRefreshCookie(t *testing.T) {
	f := newFixture(t, nil)
	f.tokens.introspection = &tokenservice.Introspection{Active: true, SessionID: "sess-9"}

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	r.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "rec-1.secret"})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if len(f.flow.loggedOut) != 1 || f.flow.loggedOut[0] != "sess-9" {
		t.Errorf("logged out sessions = %v", f.flow.loggedOut)
	}
}

func TestDeclineCompliance_ReturnsOutcome(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.verifyOut = successOutcome()

	w := postJSON(t, f.router, "/v1/auth/compliance/decline", map[string]string{
		"context_id": "lc-1", "document_id": "doc-newsletter",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["step"] != "SUCCESS" {
		t.Errorf("body = %v", body)
	}
	if len(f.flow.declined) != 1 || f.flow.declined[0] != "doc-newsletter" {
		t.Errorf("declined = %v", f.flow.declined)
	}
}

func TestDeclineCompliance_MandatoryDocument(t *testing.T) {
	f := newFixture(t, nil)
	f.flow.verifyErr = complianceservice.ErrDocumentMandatory

	w := postJSON(t, f.router, "/v1/auth/compliance/decline", map[string]string{
		"context_id": "lc-1", "document_id": "doc-tos",
	})

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if body := decode(t, w); body["error"] != "document_mandatory" {
		t.Errorf("body = %v", body)
	}
}

func TestLogoutAll_RequiresBearerToken(t *testing.T) {
	f := newFixture(t, nil)

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/logout/all", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if len(f.flow.loggedOutAll) != 0 {
		t.Errorf("logged out subjects = %v, want none", f.flow.loggedOutAll)
	}
}

func TestLogoutAll_WithBearerToken(t *testing.T) {
	f := newFixture(t, nil)
	token, _, _, err := f.provider.IssueAccess("sess-1", "sub-1", []string{"customer"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/v1/auth/logout/all", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if len(f.flow.loggedOutAll) != 1 || f.flow.loggedOutAll[0] != "sub-1" {
		t.Errorf("logged out subjects = %v", f.flow.loggedOutAll)
	}
	cookie := findCookie(w, refreshCookieName)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Errorf("cookie not cleared: %+v", cookie)
	}
}

func TestIntrospect_ActiveToken(t *testing.T) {
	f := newFixture(t, nil)
	exp := time.Now().UTC().Add(10 * time.Minute)
	f.tokens.introspection = &tokenservice.Introspection{
		Active: true, TokenUse: "access", SubjectID: "sub-1", SessionID: "sess-1",
		Username: "alice", ExpiresAt: exp,
	}

	w := postForm(t, f.router, "/v1/oauth/introspect", url.Values{"token": {"some.jwt"}})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["active"] != true || body["sub"] != "sub-1" || body["username"] != "alice" {
		t.Errorf("body = %v", body)
	}
}

func TestIntrospect_InactiveToken(t *testing.T) {
	f := newFixture(t, nil)
	f.tokens.introspection = &tokenservice.Introspection{Active: false}

	w := postForm(t, f.router, "/v1/oauth/introspect", url.Values{"token": {"garbage"}})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["active"] != false {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["sub"]; ok {
		t.Error("inactive introspection must not leak claims")
	}
}

func TestRevoke_AlwaysOK(t *testing.T) {
	f := newFixture(t, nil)

	w := postForm(t, f.router, "/v1/oauth/revoke", url.Values{"token": {"rec-1.secret"}})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if len(f.tokens.revoked) != 1 || f.tokens.revoked[0] != "rec-1.secret" {
		t.Errorf("revoked = %v", f.tokens.revoked)
	}
}

func TestDiscovery_And_JWKS(t *testing.T) {
	f := newFixture(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("discovery status = %d", w.Code)
	}
	body := decode(t, w)
	if body["issuer"] != "test-issuer" {
		t.Errorf("issuer = %v", body["issuer"])
	}
	if !strings.HasSuffix(body["jwks_uri"].(string), "/.well-known/jwks.json") {
		t.Errorf("jwks_uri = %v", body["jwks_uri"])
	}

	r = httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("jwks status = %d", w.Code)
	}
	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &jwks); err != nil {
		t.Fatalf("decode jwks: %v", err)
	}
	if len(jwks.Keys) != 1 {
		t.Errorf("jwks keys = %d, want 1", len(jwks.Keys))
	}
}

func TestDevOTP_EnabledAndDisabled(t *testing.T) {
	store := devotp.NewMemoryStore()
	store.Put(context.Background(), "tx-1", "123456", time.Now().UTC().Add(time.Minute))

	f := newFixture(t, store)
	r := httptest.NewRequest(http.MethodGet, "/dev/mfa/otp?transaction_id=tx-1", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["otp"] != "123456" {
		t.Errorf("body = %v", body)
	}

	// Unknown transaction.
	r = httptest.NewRequest(http.MethodGet, "/dev/mfa/otp?transaction_id=tx-9", nil)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	// Route absent without a dev store.
	f = newFixture(t, nil)
	r = httptest.NewRequest(http.MethodGet, "/dev/mfa/otp?transaction_id=tx-1", nil)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when dev OTP disabled", w.Code)
	}
}

func TestHealthz_DefaultHandler(t *testing.T) {
	f := newFixture(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func postForm(t *testing.T, router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
