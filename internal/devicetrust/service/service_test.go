package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"ciam-core/backend/internal/devicetrust/domain"
)

// memTrustRepo is an in-memory device trust repository for tests.
type memTrustRepo struct {
	mu      sync.Mutex
	records map[string]*domain.TrustRecord
}

func newMemTrustRepo() *memTrustRepo {
	return &memTrustRepo{records: make(map[string]*domain.TrustRecord)}
}

func key(subjectID, fingerprint string) string { return subjectID + "|" + fingerprint }

func (m *memTrustRepo) Get(ctx context.Context, subjectID, fingerprint string) (*domain.TrustRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key(subjectID, fingerprint)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memTrustRepo) ListBySubject(ctx context.Context, subjectID string) ([]*domain.TrustRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TrustRecord
	for _, rec := range m.records {
		if rec.SubjectID == subjectID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTrustRepo) Upsert(ctx context.Context, r *domain.TrustRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[key(r.SubjectID, r.Fingerprint)] = &cp
	return nil
}

func (m *memTrustRepo) UpdateLastUsed(ctx context.Context, subjectID, fingerprint string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[key(subjectID, fingerprint)]; ok {
		rec.LastUsedAt = &at
	}
	return nil
}

func (m *memTrustRepo) Delete(ctx context.Context, subjectID, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key(subjectID, fingerprint))
	return nil
}

func (m *memTrustRepo) DeleteBySubject(ctx context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, rec := range m.records {
		if rec.SubjectID == subjectID {
			delete(m.records, k)
		}
	}
	return nil
}

func (m *memTrustRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, rec := range m.records {
		if !now.Before(rec.ExpiresAt) {
			delete(m.records, k)
			n++
		}
	}
	return n, nil
}

func TestService_BindAndIsTrusted(t *testing.T) {
	repo := newMemTrustRepo()
	svc := NewService(repo, 30, nil)
	ctx := context.Background()

	rec, err := svc.Bind(ctx, "sub-1", "fp-1", 0)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if rec.ExpiresAt.Sub(rec.TrustedAt) != 30*24*time.Hour {
		t.Errorf("default TTL = %v, want 720h", rec.ExpiresAt.Sub(rec.TrustedAt))
	}

	trusted, err := svc.IsTrusted(ctx, "sub-1", "fp-1")
	if err != nil {
		t.Fatalf("IsTrusted: %v", err)
	}
	if !trusted {
		t.Error("bound device should be trusted")
	}

	stored, _ := repo.Get(ctx, "sub-1", "fp-1")
	if stored.LastUsedAt == nil {
		t.Error("IsTrusted should refresh LastUsedAt")
	}
}

func TestService_BindPolicyTTL(t *testing.T) {
	svc := NewService(newMemTrustRepo(), 30, nil)
	rec, err := svc.Bind(context.Background(), "sub-1", "fp-1", 7)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if rec.ExpiresAt.Sub(rec.TrustedAt) != 7*24*time.Hour {
		t.Errorf("TTL = %v, want 168h", rec.ExpiresAt.Sub(rec.TrustedAt))
	}
}

func TestService_BindIdempotent(t *testing.T) {
	repo := newMemTrustRepo()
	svc := NewService(repo, 30, nil)
	ctx := context.Background()

	first, _ := svc.Bind(ctx, "sub-1", "fp-1", 0)
	second, err := svc.Bind(ctx, "sub-1", "fp-1", 0)
	if err != nil {
		t.Fatalf("second Bind: %v", err)
	}
	if second.ExpiresAt.Before(first.ExpiresAt) {
		t.Error("re-bind should not shorten the trust")
	}

	list, _ := repo.ListBySubject(ctx, "sub-1")
	if len(list) != 1 {
		t.Errorf("records = %d, want 1", len(list))
	}
}

func TestService_IsTrustedUnknown(t *testing.T) {
	svc := NewService(newMemTrustRepo(), 30, nil)
	ctx := context.Background()

	trusted, err := svc.IsTrusted(ctx, "sub-1", "fp-unknown")
	if err != nil || trusted {
		t.Errorf("unknown device: trusted=%v err=%v", trusted, err)
	}
	trusted, err = svc.IsTrusted(ctx, "sub-1", "")
	if err != nil || trusted {
		t.Errorf("empty fingerprint: trusted=%v err=%v", trusted, err)
	}
}

func TestService_IsTrustedExpiredAtBoundary(t *testing.T) {
	repo := newMemTrustRepo()
	svc := NewService(repo, 30, nil)
	ctx := context.Background()

	rec, _ := svc.Bind(ctx, "sub-1", "fp-1", 0)

	// Pin the clock to the exact expiry instant; the boundary is inclusive.
	svc.now = func() time.Time { return rec.ExpiresAt }
	trusted, err := svc.IsTrusted(ctx, "sub-1", "fp-1")
	if err != nil {
		t.Fatalf("IsTrusted: %v", err)
	}
	if trusted {
		t.Error("trust at its expiry instant should not hold")
	}

	// Lazy GC removed the lapsed record.
	if got, _ := repo.Get(ctx, "sub-1", "fp-1"); got != nil {
		t.Error("lapsed record should be deleted")
	}
}

func TestService_Revoke(t *testing.T) {
	repo := newMemTrustRepo()
	svc := NewService(repo, 30, nil)
	ctx := context.Background()

	svc.Bind(ctx, "sub-1", "fp-1", 0)
	if err := svc.Revoke(ctx, "sub-1", "fp-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if trusted, _ := svc.IsTrusted(ctx, "sub-1", "fp-1"); trusted {
		t.Error("revoked device should not be trusted")
	}
	// Revoking again is a no-op.
	if err := svc.Revoke(ctx, "sub-1", "fp-1"); err != nil {
		t.Errorf("second Revoke: %v", err)
	}
}

func TestService_RevokeAll(t *testing.T) {
	repo := newMemTrustRepo()
	svc := NewService(repo, 30, nil)
	ctx := context.Background()

	svc.Bind(ctx, "sub-1", "fp-1", 0)
	svc.Bind(ctx, "sub-1", "fp-2", 0)
	svc.Bind(ctx, "sub-2", "fp-1", 0)

	if err := svc.RevokeAll(ctx, "sub-1"); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if trusted, _ := svc.IsTrusted(ctx, "sub-1", "fp-1"); trusted {
		t.Error("sub-1 fp-1 should be revoked")
	}
	if trusted, _ := svc.IsTrusted(ctx, "sub-2", "fp-1"); !trusted {
		t.Error("other subject's trust should survive")
	}
}

func TestService_SweepExpired(t *testing.T) {
	repo := newMemTrustRepo()
	svc := NewService(repo, 30, nil)
	ctx := context.Background()

	rec, _ := svc.Bind(ctx, "sub-1", "fp-1", 1)
	svc.Bind(ctx, "sub-1", "fp-2", 30)

	svc.now = func() time.Time { return rec.ExpiresAt }
	n, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}
}
