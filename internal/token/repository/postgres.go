package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ciam-core/backend/internal/token/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a token record repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = "id, session_id, secret_hash, revoked, expires_at, created_at"

// GetByID returns the token record for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.TokenRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+tokenColumns+" FROM token_records WHERE id = $1", id)
	var rec domain.TokenRecord
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.SecretHash, &rec.Revoked, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Create persists the token record. The record must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.TokenRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO token_records (id, session_id, secret_hash, revoked, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.SessionID, rec.SecretHash, rec.Revoked, rec.ExpiresAt, rec.CreatedAt)
	return err
}

// Rotate atomically revokes oldID and inserts newRec. The conditional UPDATE
// decides the winner under concurrency: only the request that flips revoked
// from false to true proceeds to the insert, every other one gets
// ErrRotateConflict and the transaction rolls back.
func (r *PostgresRepository) Rotate(ctx context.Context, oldID string, now time.Time, newRec *domain.TokenRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE token_records SET revoked = TRUE WHERE id = $1 AND revoked = FALSE AND expires_at > $2",
		oldID, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRotateConflict
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO token_records (id, session_id, secret_hash, revoked, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		newRec.ID, newRec.SessionID, newRec.SecretHash, newRec.Revoked, newRec.ExpiresAt, newRec.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Revoke marks the token record with the given id as revoked. Idempotent.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE token_records SET revoked = TRUE WHERE id = $1", id)
	return err
}

// RevokeBySession revokes every token record belonging to the session.
func (r *PostgresRepository) RevokeBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE token_records SET revoked = TRUE WHERE session_id = $1", sessionID)
	return err
}

// DeleteExpired removes records past their expiry and returns the count removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM token_records WHERE expires_at <= $1", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
