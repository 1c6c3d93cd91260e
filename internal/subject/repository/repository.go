package repository

import (
	"context"

	"ciam-core/backend/internal/subject/domain"
)

// Repository defines persistence for subjects.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Subject, error)
	GetByUsername(ctx context.Context, username string) (*domain.Subject, error)
	Create(ctx context.Context, s *domain.Subject) error
	Update(ctx context.Context, s *domain.Subject) error
	// SetStatus updates only the subject's status. No-op if the subject does not exist.
	SetStatus(ctx context.Context, id string, status domain.SubjectStatus) error
}
