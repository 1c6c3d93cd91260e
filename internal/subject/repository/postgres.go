package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ciam-core/backend/internal/subject/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a subject repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const subjectColumns = "id, username, password_hash, phone, push_device_id, status, created_at, updated_at"

// GetByID returns the subject for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Subject, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE id = $1", id)
	return scanSubject(row)
}

// GetByUsername returns the subject with the given username, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.Subject, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+subjectColumns+" FROM subjects WHERE username = $1", username)
	return scanSubject(row)
}

// Create persists the subject to the database. The subject must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Subject) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subjects (id, username, password_hash, phone, push_device_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Username, s.PasswordHash, nullString(s.Phone), nullString(s.PushDeviceID), string(s.Status), s.CreatedAt, s.UpdatedAt)
	return err
}

// Update updates the existing subject record in the database.
func (r *PostgresRepository) Update(ctx context.Context, s *domain.Subject) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subjects
		 SET username = $2, password_hash = $3, phone = $4, push_device_id = $5, status = $6, updated_at = $7
		 WHERE id = $1`,
		s.ID, s.Username, s.PasswordHash, nullString(s.Phone), nullString(s.PushDeviceID), string(s.Status), s.UpdatedAt)
	return err
}

// SetStatus updates only the subject's status. No-op if the subject does not exist.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status domain.SubjectStatus) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE subjects SET status = $2, updated_at = $3 WHERE id = $1",
		id, string(status), time.Now().UTC())
	return err
}

func scanSubject(row *sql.Row) (*domain.Subject, error) {
	var s domain.Subject
	var phone, pushDeviceID sql.NullString
	var status string
	err := row.Scan(&s.ID, &s.Username, &s.PasswordHash, &phone, &pushDeviceID, &status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Phone = phone.String
	s.PushDeviceID = pushDeviceID.String
	s.Status = domain.SubjectStatus(status)
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
