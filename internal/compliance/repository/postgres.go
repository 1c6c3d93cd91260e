package repository

import (
	"context"
	"database/sql"
	"errors"

	"ciam-core/backend/internal/compliance/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a compliance repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetDocument returns the document for id, or nil if not found.
func (r *PostgresRepository) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, version, mandatory, active, created_at FROM compliance_documents WHERE id = $1", id)
	var d domain.Document
	err := row.Scan(&d.ID, &d.Version, &d.Mandatory, &d.Active, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// ListActiveDocuments returns all active documents.
func (r *PostgresRepository) ListActiveDocuments(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, version, mandatory, active, created_at FROM compliance_documents WHERE active = TRUE ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Version, &d.Mandatory, &d.Active, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// GetAcceptance returns the subject's acceptance of the document, or nil if not found.
func (r *PostgresRepository) GetAcceptance(ctx context.Context, subjectID, documentID string) (*domain.Acceptance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT subject_id, document_id, document_version, context_id, accepted_at, accepted_ip
		 FROM compliance_acceptances WHERE subject_id = $1 AND document_id = $2`,
		subjectID, documentID)
	a, err := scanAcceptance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListAcceptancesBySubject returns all acceptances for the subject.
func (r *PostgresRepository) ListAcceptancesBySubject(ctx context.Context, subjectID string) ([]*domain.Acceptance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT subject_id, document_id, document_version, context_id, accepted_at, accepted_ip
		 FROM compliance_acceptances WHERE subject_id = $1`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Acceptance
	for rows.Next() {
		a, err := scanAcceptance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAcceptance inserts or moves the acceptance to the accepted version.
func (r *PostgresRepository) UpsertAcceptance(ctx context.Context, a *domain.Acceptance) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO compliance_acceptances (subject_id, document_id, document_version, context_id, accepted_at, accepted_ip)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (subject_id, document_id)
		 DO UPDATE SET document_version = EXCLUDED.document_version, context_id = EXCLUDED.context_id,
		               accepted_at = EXCLUDED.accepted_at, accepted_ip = EXCLUDED.accepted_ip`,
		a.SubjectID, a.DocumentID, a.DocumentVersion, a.ContextID, a.AcceptedAt,
		sql.NullString{String: a.AcceptedIP, Valid: a.AcceptedIP != ""})
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAcceptance(row rowScanner) (*domain.Acceptance, error) {
	var a domain.Acceptance
	var ip sql.NullString
	err := row.Scan(&a.SubjectID, &a.DocumentID, &a.DocumentVersion, &a.ContextID, &a.AcceptedAt, &ip)
	if err != nil {
		return nil, err
	}
	a.AcceptedIP = ip.String
	return &a, nil
}
