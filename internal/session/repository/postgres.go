package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ciam-core/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = "id, subject_id, device_id, client_ip, user_agent, active, expires_at, last_seen_at, created_at"

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = $1", id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListBySubject returns all sessions for the given subject, newest first.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE subject_id = $1 ORDER BY created_at DESC", subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, subject_id, device_id, client_ip, user_agent, active, expires_at, last_seen_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.SubjectID, s.DeviceID,
		sql.NullString{String: s.ClientIP, Valid: s.ClientIP != ""},
		sql.NullString{String: s.UserAgent, Valid: s.UserAgent != ""},
		s.Active, s.ExpiresAt, timeToNullTime(s.LastSeenAt), s.CreatedAt)
	return err
}

// Deactivate marks the session with the given id as inactive.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sessions SET active = FALSE WHERE id = $1", id)
	return err
}

// DeactivateAllBySubject marks all of the subject's sessions as inactive.
func (r *PostgresRepository) DeactivateAllBySubject(ctx context.Context, subjectID string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sessions SET active = FALSE WHERE subject_id = $1", subjectID)
	return err
}

// UpdateLastSeen sets the session's last-seen timestamp for the given id.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sessions SET last_seen_at = $2 WHERE id = $1", id, at)
	return err
}

// DeactivateExpired deactivates all active sessions past their expiry and returns the count.
func (r *PostgresRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET active = FALSE WHERE active = TRUE AND expires_at <= $1", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var clientIP, userAgent sql.NullString
	var lastSeen sql.NullTime
	err := row.Scan(&s.ID, &s.SubjectID, &s.DeviceID, &clientIP, &userAgent, &s.Active, &s.ExpiresAt, &lastSeen, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.ClientIP = clientIP.String
	s.UserAgent = userAgent.String
	s.LastSeenAt = nullTimeToPtr(lastSeen)
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
