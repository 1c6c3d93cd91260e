package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ciam-core/backend/internal/mfa/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an MFA transaction repository that uses the given db.
// A partial unique index on (context_id) WHERE status = 'PENDING' backs the
// one-pending-per-context guarantee at the storage level.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const txColumns = "id, context_id, subject_id, method, status, secret_hash, display_number, attempts, expires_at, resolved_at, created_at"

// Create persists the MFA transaction. The transaction must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mfa_transactions (id, context_id, subject_id, method, status, secret_hash, display_number, attempts, expires_at, resolved_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.ContextID, t.SubjectID, string(t.Method), string(t.Status),
		sql.NullString{String: t.SecretHash, Valid: t.SecretHash != ""},
		sql.NullString{String: t.DisplayNumber, Valid: t.DisplayNumber != ""},
		t.Attempts, t.ExpiresAt, timeToNullTime(t.ResolvedAt), t.CreatedAt)
	return err
}

// GetByID returns the transaction for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+txColumns+" FROM mfa_transactions WHERE id = $1", id)
	return scanTransaction(row)
}

// GetPendingByContext returns the PENDING transaction for the context, or nil.
func (r *PostgresRepository) GetPendingByContext(ctx context.Context, contextID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM mfa_transactions WHERE context_id = $1 AND status = 'PENDING'", contextID)
	return scanTransaction(row)
}

// GetLatestByContext returns the most recently created transaction for the context, or nil.
func (r *PostgresRepository) GetLatestByContext(ctx context.Context, contextID string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM mfa_transactions WHERE context_id = $1 ORDER BY created_at DESC LIMIT 1", contextID)
	return scanTransaction(row)
}

// Resolve performs the guarded PENDING -> terminal transition. The WHERE clause
// makes concurrent resolutions race on the row: only one UPDATE affects it.
func (r *PostgresRepository) Resolve(ctx context.Context, id string, to domain.Status, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE mfa_transactions SET status = $2, resolved_at = $3 WHERE id = $1 AND status = 'PENDING'",
		id, string(to), at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrementAttempts bumps the attempt counter and returns the new value.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		"UPDATE mfa_transactions SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts", id).Scan(&attempts)
	return attempts, err
}

// ExpirePendingByContext expires any PENDING transaction for the context.
func (r *PostgresRepository) ExpirePendingByContext(ctx context.Context, contextID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE mfa_transactions SET status = 'EXPIRED', resolved_at = $2 WHERE context_id = $1 AND status = 'PENDING'",
		contextID, at)
	return err
}

// ExpirePendingBySubject expires every PENDING transaction of the subject.
func (r *PostgresRepository) ExpirePendingBySubject(ctx context.Context, subjectID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE mfa_transactions SET status = 'EXPIRED', resolved_at = $2 WHERE subject_id = $1 AND status = 'PENDING'",
		subjectID, at)
	return err
}

// ExpireOverdue expires every overdue PENDING transaction and returns the count.
func (r *PostgresRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE mfa_transactions SET status = 'EXPIRED', resolved_at = $1 WHERE status = 'PENDING' AND expires_at <= $1", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanTransaction(row *sql.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var method, status string
	var secretHash, displayNumber sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&t.ID, &t.ContextID, &t.SubjectID, &method, &status, &secretHash, &displayNumber, &t.Attempts, &t.ExpiresAt, &resolvedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Method = domain.Method(method)
	t.Status = domain.Status(status)
	t.SecretHash = secretHash.String
	t.DisplayNumber = displayNumber.String
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	return &t, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
