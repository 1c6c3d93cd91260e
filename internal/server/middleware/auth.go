package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"ciam-core/backend/internal/security"
)

const bearerPrefix = "bearer "

// Auth validates the Bearer (access) token and sets subject_id and session_id
// in the request context. Requests without a valid token pass through
// unauthenticated; handlers that need an identity use RequireAuth.
func Auth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" || tokens == nil {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithIdentity(r.Context(), claims.Subject, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests whose context has no authenticated subject.
// Mount after Auth on routes that need a Bearer token.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := GetSubjectID(r.Context()); !ok || id == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing or invalid authorization"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func BearerToken(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
