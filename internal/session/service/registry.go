package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ciam-core/backend/internal/audit"
	"ciam-core/backend/internal/session/domain"
	"ciam-core/backend/internal/session/repository"
)

var (
	// ErrSessionNotFound is returned when the session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotLive is returned when the session exists but is inactive or expired.
	ErrSessionNotLive = errors.New("session not live")
)

// Registry creates and tracks subject sessions.
type Registry struct {
	sessions repository.Repository
	lifetime time.Duration
	audit    audit.AuditLogger
	now      func() time.Time
}

// NewRegistry returns a Registry persisting to sessions. lifetime is the
// fixed session lifetime; auditLogger may be nil.
func NewRegistry(sessions repository.Repository, lifetime time.Duration, auditLogger audit.AuditLogger) *Registry {
	return &Registry{
		sessions: sessions,
		lifetime: lifetime,
		audit:    auditLogger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new session for the subject on the given device.
func (r *Registry) Create(ctx context.Context, subjectID, deviceID, clientIP, userAgent string) (*domain.Session, error) {
	now := r.now()
	s := &domain.Session{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		DeviceID:  deviceID,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		Active:    true,
		ExpiresAt: now.Add(r.lifetime),
		CreatedAt: now,
	}
	if err := r.sessions.Create(ctx, s); err != nil {
		return nil, err
	}
	if r.audit != nil {
		r.audit.LogEvent(ctx, subjectID, "session_created", "session", s.ID)
	}
	return s, nil
}

// Get returns the live session for id. Returns ErrSessionNotFound when it does
// not exist and ErrSessionNotLive when it is inactive or expired.
func (r *Registry) Get(ctx context.Context, id string) (*domain.Session, error) {
	s, err := r.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	if !s.Live(r.now()) {
		return nil, ErrSessionNotLive
	}
	return s, nil
}

// Touch records activity on the session, updating its last-seen timestamp.
func (r *Registry) Touch(ctx context.Context, id string) error {
	return r.sessions.UpdateLastSeen(ctx, id, r.now())
}

// Deactivate ends the session with the given id. Idempotent.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	if err := r.sessions.Deactivate(ctx, id); err != nil {
		return err
	}
	if r.audit != nil {
		r.audit.LogEvent(ctx, "", "session_ended", "session", id)
	}
	return nil
}

// ListForSubject returns every session of the subject, live or not.
func (r *Registry) ListForSubject(ctx context.Context, subjectID string) ([]*domain.Session, error) {
	return r.sessions.ListBySubject(ctx, subjectID)
}

// DeactivateAllForSubject ends every session belonging to the subject.
func (r *Registry) DeactivateAllForSubject(ctx context.Context, subjectID string) error {
	if err := r.sessions.DeactivateAllBySubject(ctx, subjectID); err != nil {
		return err
	}
	if r.audit != nil {
		r.audit.LogEvent(ctx, subjectID, "sessions_ended", "session", "all")
	}
	return nil
}

// SweepExpired deactivates sessions past their expiry and returns the count swept.
func (r *Registry) SweepExpired(ctx context.Context) (int64, error) {
	return r.sessions.DeactivateExpired(ctx, r.now())
}
