package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ciam-core/backend/internal/logincontext/domain"
)

const contextColumns = `id, subject_id, session_id, device_fingerprint, client_ip, user_agent,
	mfa_required, mfa_completed, approved_transaction_id, compliance_done, declined_document_ids,
	bind_offered, consumed, expires_at, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a login context repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the login context for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Context, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+contextColumns+" FROM login_contexts WHERE id = $1", id)
	c, err := scanContext(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// Create persists the login context. The context must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Context) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_contexts (`+contextColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.SubjectID, nullString(c.SessionID), nullString(c.DeviceFingerprint),
		nullString(c.ClientIP), nullString(c.UserAgent),
		c.MfaRequired, c.MfaCompleted, nullString(c.ApprovedTransactionID),
		c.ComplianceDone, joinIDs(c.DeclinedDocumentIDs),
		c.BindOffered, c.Consumed, c.ExpiresAt, c.CreatedAt)
	return err
}

// Update rewrites the mutable fields of the login context.
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE login_contexts
		 SET session_id = $2, mfa_required = $3, mfa_completed = $4,
		     approved_transaction_id = $5, compliance_done = $6,
		     declined_document_ids = $7, bind_offered = $8, consumed = $9
		 WHERE id = $1`,
		c.ID, nullString(c.SessionID), c.MfaRequired, c.MfaCompleted,
		nullString(c.ApprovedTransactionID), c.ComplianceDone,
		joinIDs(c.DeclinedDocumentIDs), c.BindOffered, c.Consumed)
	return err
}

// Consume marks the context consumed; returns false if it already was.
func (r *PostgresRepository) Consume(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE login_contexts SET consumed = TRUE WHERE id = $1 AND consumed = FALSE", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpired removes lapsed contexts and returns the count removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM login_contexts WHERE expires_at <= $1", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContext(row rowScanner) (*domain.Context, error) {
	var c domain.Context
	var sessionID, fingerprint, clientIP, userAgent, approvedTx, declined sql.NullString
	err := row.Scan(
		&c.ID, &c.SubjectID, &sessionID, &fingerprint, &clientIP, &userAgent,
		&c.MfaRequired, &c.MfaCompleted, &approvedTx, &c.ComplianceDone, &declined,
		&c.BindOffered, &c.Consumed, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.SessionID = sessionID.String
	c.DeviceFingerprint = fingerprint.String
	c.ClientIP = clientIP.String
	c.UserAgent = userAgent.String
	c.ApprovedTransactionID = approvedTx.String
	c.DeclinedDocumentIDs = splitIDs(declined.String)
	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func joinIDs(ids []string) sql.NullString {
	return nullString(strings.Join(ids, ","))
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
