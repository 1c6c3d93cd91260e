package repository

import (
	"context"
	"time"

	"ciam-core/backend/internal/mfa/domain"
)

// Repository defines persistence for MFA transactions.
type Repository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	// GetPendingByContext returns the single PENDING transaction for the login
	// context, or nil when there is none.
	GetPendingByContext(ctx context.Context, contextID string) (*domain.Transaction, error)
	// GetLatestByContext returns the most recently created transaction for the
	// login context regardless of status, or nil when there is none.
	GetLatestByContext(ctx context.Context, contextID string) (*domain.Transaction, error)
	// Resolve transitions the transaction from PENDING to the given terminal
	// status. Returns true when this call performed the transition, false when
	// the transaction was not PENDING anymore. Concurrent resolutions of the
	// same transaction see exactly one true.
	Resolve(ctx context.Context, id string, to domain.Status, at time.Time) (bool, error)
	// IncrementAttempts bumps the attempt counter and returns the new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// ExpirePendingByContext expires any PENDING transaction for the context.
	ExpirePendingByContext(ctx context.Context, contextID string, at time.Time) error
	// ExpirePendingBySubject expires every PENDING transaction of the subject,
	// across all contexts. Used when a fresh login supersedes older attempts.
	ExpirePendingBySubject(ctx context.Context, subjectID string, at time.Time) error
	// ExpireOverdue expires every PENDING transaction whose expiry is at or
	// before now and returns the number affected.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}
