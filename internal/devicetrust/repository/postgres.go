package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ciam-core/backend/internal/devicetrust/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device trust repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const trustColumns = "subject_id, fingerprint, trusted_at, expires_at, last_used_at"

// Get returns the trust record for the (subject, fingerprint) pair, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, subjectID, fingerprint string) (*domain.TrustRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+trustColumns+" FROM device_trust WHERE subject_id = $1 AND fingerprint = $2",
		subjectID, fingerprint)
	rec, err := scanTrust(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ListBySubject returns all trust records for the subject.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string) ([]*domain.TrustRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+trustColumns+" FROM device_trust WHERE subject_id = $1 ORDER BY trusted_at DESC", subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TrustRecord
	for rows.Next() {
		rec, err := scanTrust(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Upsert inserts or refreshes the trust record for the (subject, fingerprint) pair.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *domain.TrustRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_trust (subject_id, fingerprint, trusted_at, expires_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (subject_id, fingerprint)
		 DO UPDATE SET trusted_at = EXCLUDED.trusted_at, expires_at = EXCLUDED.expires_at`,
		rec.SubjectID, rec.Fingerprint, rec.TrustedAt, rec.ExpiresAt, timeToNullTime(rec.LastUsedAt))
	return err
}

// UpdateLastUsed records the trust being exercised at a login.
func (r *PostgresRepository) UpdateLastUsed(ctx context.Context, subjectID, fingerprint string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE device_trust SET last_used_at = $3 WHERE subject_id = $1 AND fingerprint = $2",
		subjectID, fingerprint, at)
	return err
}

// Delete removes the trust record for the (subject, fingerprint) pair. Idempotent.
func (r *PostgresRepository) Delete(ctx context.Context, subjectID, fingerprint string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM device_trust WHERE subject_id = $1 AND fingerprint = $2", subjectID, fingerprint)
	return err
}

// DeleteBySubject removes every trust record for the subject.
func (r *PostgresRepository) DeleteBySubject(ctx context.Context, subjectID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM device_trust WHERE subject_id = $1", subjectID)
	return err
}

// DeleteExpired removes records past their expiry and returns the count removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM device_trust WHERE expires_at <= $1", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrust(row rowScanner) (*domain.TrustRecord, error) {
	var rec domain.TrustRecord
	var lastUsed sql.NullTime
	err := row.Scan(&rec.SubjectID, &rec.Fingerprint, &rec.TrustedAt, &rec.ExpiresAt, &lastUsed)
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		rec.LastUsedAt = &lastUsed.Time
	}
	return &rec, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
