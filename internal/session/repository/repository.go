package repository

import (
	"context"
	"time"

	"ciam-core/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Deactivate(ctx context.Context, id string) error
	DeactivateAllBySubject(ctx context.Context, subjectID string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	// DeactivateExpired deactivates every active session whose expiry is at or
	// before now and returns the number of sessions affected.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
