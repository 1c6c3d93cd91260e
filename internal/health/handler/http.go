// Package handler serves readiness and liveness for Kubernetes, load
// balancers, and CI.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the policy engine can compile and evaluate
// (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

const checkTimeout = 2 * time.Second

// Server serves GET /healthz. Nil checks are skipped, so the server stays
// usable before the DB or policy engine is wired.
type Server struct {
	db     Pinger
	policy PolicyChecker
}

// NewServer returns a health Server with the given checks; either may be nil.
func NewServer(db Pinger, policy PolicyChecker) *Server {
	return &Server{db: db, policy: policy}
}

// ServeHTTP reports overall and per-check status. Returns 503 when any
// configured check fails.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			checks["database"] = "unavailable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			checks["policy"] = "unavailable"
			healthy = false
		} else {
			checks["policy"] = "ok"
		}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}
