package repository

import (
	"context"

	"ciam-core/backend/internal/compliance/domain"
)

// Repository defines persistence for compliance documents and acceptances.
type Repository interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListActiveDocuments(ctx context.Context) ([]*domain.Document, error)
	GetAcceptance(ctx context.Context, subjectID, documentID string) (*domain.Acceptance, error)
	ListAcceptancesBySubject(ctx context.Context, subjectID string) ([]*domain.Acceptance, error)
	// UpsertAcceptance inserts the acceptance or, when the subject already
	// accepted the document, moves the acceptance to the new version.
	UpsertAcceptance(ctx context.Context, a *domain.Acceptance) error
}
