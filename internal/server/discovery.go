package server

import (
	"net/http"

	"ciam-core/backend/internal/security"
)

// Discovery serves the OIDC discovery document and the JWKS endpoint.
type Discovery struct {
	provider *security.TokenProvider
}

// NewDiscovery returns the discovery handlers for the given token provider.
func NewDiscovery(provider *security.TokenProvider) *Discovery {
	return &Discovery{provider: provider}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// OpenIDConfiguration handles GET /.well-known/openid-configuration.
func (d *Discovery) OpenIDConfiguration(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                d.provider.Issuer(),
		"jwks_uri":                              base + "/.well-known/jwks.json",
		"token_endpoint":                        base + "/v1/auth/refresh",
		"introspection_endpoint":                base + "/v1/oauth/introspect",
		"revocation_endpoint":                   base + "/v1/oauth/revoke",
		"end_session_endpoint":                  base + "/v1/auth/logout",
		"grant_types_supported":                 []string{"password", "refresh_token"},
		"id_token_signing_alg_values_supported": []string{d.provider.Alg()},
	})
}

// JWKS handles GET /.well-known/jwks.json.
func (d *Discovery) JWKS(w http.ResponseWriter, r *http.Request) {
	doc, err := d.provider.JWKS()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
