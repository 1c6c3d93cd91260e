// Package middleware holds the HTTP middleware chain: client IP resolution,
// Bearer authentication, and request auditing.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey struct{ name string }

var (
	subjectIDKey = contextKey{"subject_id"}
	sessionIDKey = contextKey{"session_id"}
	clientIPKey  = contextKey{"client_ip"}
)

// WithIdentity returns a context with subject_id and session_id set.
// Handlers and services can read these via GetSubjectID and GetSessionID.
func WithIdentity(ctx context.Context, subjectID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, subjectIDKey, subjectID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return ctx
}

// GetSubjectID returns the subject_id from context and true if set; otherwise "", false.
func GetSubjectID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectIDKey).(string)
	return v, ok
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// WithClientIP returns a context carrying the resolved client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// IPFromContext returns the client IP stored by the ClientIP middleware, or
// "unknown". Shaped to plug into audit.IPExtractor.
func IPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// ClientIP resolves the client IP from X-Forwarded-For, X-Real-IP, or the
// peer address and stores it in the request context for handlers and audit.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ResolveClientIP(r))))
	})
}

// ResolveClientIP returns the client IP for the request: the first
// X-Forwarded-For entry, then X-Real-IP, then the peer address.
func ResolveClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		if s != "" {
			return s
		}
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
