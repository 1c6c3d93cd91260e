package repository

import (
	"context"
	"time"

	"ciam-core/backend/internal/devicetrust/domain"
)

// Repository defines persistence for device trust records.
type Repository interface {
	Get(ctx context.Context, subjectID, fingerprint string) (*domain.TrustRecord, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*domain.TrustRecord, error)
	// Upsert inserts the record or, when the (subject, fingerprint) pair
	// already exists, refreshes its trusted_at and expires_at.
	Upsert(ctx context.Context, r *domain.TrustRecord) error
	UpdateLastUsed(ctx context.Context, subjectID, fingerprint string, at time.Time) error
	Delete(ctx context.Context, subjectID, fingerprint string) error
	DeleteBySubject(ctx context.Context, subjectID string) error
	// DeleteExpired removes records past their expiry and returns the count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
