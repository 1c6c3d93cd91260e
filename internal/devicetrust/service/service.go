package service

import (
	"context"
	"time"

	"ciam-core/backend/internal/audit"
	"ciam-core/backend/internal/devicetrust/domain"
	"ciam-core/backend/internal/devicetrust/repository"
)

// Service manages device trust: binding a device after a strong login,
// checking it on later logins, and revoking it.
type Service struct {
	records    repository.Repository
	defaultTTL time.Duration
	audit      audit.AuditLogger
	now        func() time.Time
}

// NewService returns a device trust Service. defaultTTLDays applies when the
// caller does not supply a policy-driven TTL. auditLogger may be nil.
func NewService(records repository.Repository, defaultTTLDays int, auditLogger audit.AuditLogger) *Service {
	return &Service{
		records:    records,
		defaultTTL: time.Duration(defaultTTLDays) * 24 * time.Hour,
		audit:      auditLogger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IsTrusted reports whether the fingerprint is currently trusted for the
// subject. Lapsed records are garbage-collected on the spot and report false;
// live ones get their last-used timestamp refreshed.
func (s *Service) IsTrusted(ctx context.Context, subjectID, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	rec, err := s.records.Get(ctx, subjectID, fingerprint)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	now := s.now()
	if rec.Expired(now) {
		_ = s.records.Delete(ctx, subjectID, fingerprint)
		return false, nil
	}
	_ = s.records.UpdateLastUsed(ctx, subjectID, fingerprint, now)
	return true, nil
}

// Bind marks the fingerprint as trusted for the subject. ttlDays overrides the
// default trust lifetime when positive. Binding an already-trusted device
// refreshes its expiry rather than failing.
func (s *Service) Bind(ctx context.Context, subjectID, fingerprint string, ttlDays int) (*domain.TrustRecord, error) {
	ttl := s.defaultTTL
	if ttlDays > 0 {
		ttl = time.Duration(ttlDays) * 24 * time.Hour
	}
	now := s.now()
	rec := &domain.TrustRecord{
		SubjectID:   subjectID,
		Fingerprint: fingerprint,
		TrustedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.records.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, subjectID, "device_trusted", "device", fingerprint)
	}
	return rec, nil
}

// Revoke removes trust for one fingerprint. Idempotent.
func (s *Service) Revoke(ctx context.Context, subjectID, fingerprint string) error {
	if err := s.records.Delete(ctx, subjectID, fingerprint); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, subjectID, "device_trust_revoked", "device", fingerprint)
	}
	return nil
}

// RevokeAll removes trust for every device of the subject.
func (s *Service) RevokeAll(ctx context.Context, subjectID string) error {
	if err := s.records.DeleteBySubject(ctx, subjectID); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, subjectID, "device_trust_revoked", "device", "all")
	}
	return nil
}

// SweepExpired removes lapsed trust records and returns the count removed.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.records.DeleteExpired(ctx, s.now())
}
