package repository

import (
	"context"
	"errors"
	"time"

	"ciam-core/backend/internal/token/domain"
)

// ErrRotateConflict is returned by Rotate when the old record was already
// revoked, expired, or rotated by a concurrent request.
var ErrRotateConflict = errors.New("token rotate conflict")

// Repository defines persistence for refresh token records.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.TokenRecord, error)
	Create(ctx context.Context, rec *domain.TokenRecord) error
	// Rotate atomically revokes the record oldID and inserts newRec in one
	// transaction. The revoke is conditional on the old record still being
	// unrevoked and unexpired at now; if the condition does not hold, nothing
	// is written and ErrRotateConflict is returned. At most one of any number
	// of concurrent Rotate calls for the same oldID succeeds.
	Rotate(ctx context.Context, oldID string, now time.Time, newRec *domain.TokenRecord) error
	Revoke(ctx context.Context, id string) error
	RevokeBySession(ctx context.Context, sessionID string) error
	// DeleteExpired removes records past their expiry and returns the count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
