package repository

import (
	"context"
	"time"

	"ciam-core/backend/internal/logincontext/domain"
)

// Repository defines persistence operations for login contexts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Context, error)
	Create(ctx context.Context, c *domain.Context) error
	Update(ctx context.Context, c *domain.Context) error
	// Consume marks the context consumed only if it is not already; it
	// returns false when another caller got there first.
	Consume(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
