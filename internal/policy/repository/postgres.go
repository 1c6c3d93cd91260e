package repository

import (
	"context"
	"database/sql"
	"errors"

	"ciam-core/backend/internal/policy/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a policy repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the policy for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, rules, enabled, created_at FROM policies WHERE id = $1", id)
	var p domain.Policy
	err := row.Scan(&p.ID, &p.Rules, &p.Enabled, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListEnabled returns all enabled policies in creation order.
func (r *PostgresRepository) ListEnabled(ctx context.Context) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, rules, enabled, created_at FROM policies WHERE enabled = TRUE ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Create persists the policy. The policy must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO policies (id, rules, enabled, created_at) VALUES ($1, $2, $3, $4)",
		p.ID, p.Rules, p.Enabled, p.CreatedAt)
	return err
}

// Update updates the policy's rules and enabled flag.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Policy) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE policies SET rules = $2, enabled = $3 WHERE id = $1",
		p.ID, p.Rules, p.Enabled)
	return err
}

// Delete removes the policy.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM policies WHERE id = $1", id)
	return err
}
