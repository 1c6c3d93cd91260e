package middleware

import (
	"net/http"

	"ciam-core/backend/internal/audit"
)

// Audit records an audit log entry after each request on an authenticated
// route. Entries are only written when a subject is set in context; the
// unauthenticated login flow audits itself at the service layer. skipPaths
// lists exact paths to never audit (e.g. /healthz).
func Audit(logger audit.AuditLogger, skipPaths map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if logger == nil || skipPaths[r.URL.Path] {
				return
			}
			subjectID, _ := GetSubjectID(r.Context())
			if subjectID == "" {
				return
			}
			ar := audit.ParseRoute(r.Method, r.URL.Path)
			logger.LogEvent(r.Context(), subjectID, ar.Action, ar.Resource, "")
		})
	}
}
