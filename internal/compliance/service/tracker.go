package service

import (
	"context"
	"errors"
	"time"

	"ciam-core/backend/internal/audit"
	"ciam-core/backend/internal/compliance/domain"
	"ciam-core/backend/internal/compliance/repository"
)

var (
	ErrDocumentNotFound  = errors.New("compliance document not found")
	ErrDocumentInactive  = errors.New("compliance document is not active")
	ErrDocumentMandatory = errors.New("compliance document is mandatory")
)

// Tracker decides which documents a subject still has to accept and records
// acceptances. Acceptance is per document version: publishing a newer version
// re-surfaces the document at the next login.
type Tracker struct {
	repo  repository.Repository
	audit audit.AuditLogger
	now   func() time.Time
}

// NewTracker returns a compliance Tracker. auditLogger may be nil.
func NewTracker(repo repository.Repository, auditLogger audit.AuditLogger) *Tracker {
	return &Tracker{
		repo:  repo,
		audit: auditLogger,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Outstanding returns the active documents, mandatory and optional, the
// subject has not accepted at their current version. Per-login dismissals of
// optional documents live on the login context, not here.
func (t *Tracker) Outstanding(ctx context.Context, subjectID string) ([]*domain.Document, error) {
	docs, err := t.repo.ListActiveDocuments(ctx)
	if err != nil {
		return nil, err
	}
	accepted, err := t.repo.ListAcceptancesBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	byDoc := make(map[string]*domain.Acceptance, len(accepted))
	for _, a := range accepted {
		byDoc[a.DocumentID] = a
	}

	var pending []*domain.Document
	for _, doc := range docs {
		if a, ok := byDoc[doc.ID]; ok && a.Covers(doc) {
			continue
		}
		pending = append(pending, doc)
	}
	return pending, nil
}

// RecordAcceptance records that the subject accepted the document at its
// current version. Accepting an already-accepted document is idempotent.
func (t *Tracker) RecordAcceptance(ctx context.Context, subjectID, documentID, contextID, clientIP string) (*domain.Acceptance, error) {
	doc, err := t.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if !doc.Active {
		return nil, ErrDocumentInactive
	}

	a := &domain.Acceptance{
		SubjectID:       subjectID,
		DocumentID:      doc.ID,
		DocumentVersion: doc.Version,
		ContextID:       contextID,
		AcceptedAt:      t.now(),
		AcceptedIP:      clientIP,
	}
	if err := t.repo.UpsertAcceptance(ctx, a); err != nil {
		return nil, err
	}
	if t.audit != nil {
		t.audit.LogEvent(ctx, subjectID, "compliance_accepted", "compliance", doc.ID)
	}
	return a, nil
}

// Decline validates that the document can be dismissed: it must exist, be
// active, and be optional. No acceptance is written; the caller scopes the
// dismissal to its login context, so the document surfaces again next login.
func (t *Tracker) Decline(ctx context.Context, subjectID, documentID string) (*domain.Document, error) {
	doc, err := t.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if !doc.Active {
		return nil, ErrDocumentInactive
	}
	if doc.Mandatory {
		return nil, ErrDocumentMandatory
	}
	if t.audit != nil {
		t.audit.LogEvent(ctx, subjectID, "compliance_declined", "compliance", doc.ID)
	}
	return doc, nil
}
