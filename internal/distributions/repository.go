package distributions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for distributions.
type Repository interface {
	ListActive(ctx context.Context) ([]Distribution, error)
	Assigned(ctx context.Context, userID string) ([]UserDistribution, error)
	AssignedBookerIDs(ctx context.Context, userID string) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListActive returns active distributions ordered by name.
func (r *PGRepository) ListActive(ctx context.Context) ([]Distribution, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, name, code, description, is_active, dist_id, client_name, client_code
		FROM distributions
		WHERE is_active = true
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("distributions: list active: %w", err)
	}
	defer rows.Close()

	out := []Distribution{}
	for rows.Next() {
		var d Distribution
		if err := rows.Scan(&d.ID, &d.Name, &d.Code, &d.Description, &d.IsActive, &d.DistID, &d.ClientName, &d.ClientCode); err != nil {
			return nil, fmt.Errorf("distributions: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Assigned returns the user's distribution links.
func (r *PGRepository) Assigned(ctx context.Context, userID string) ([]UserDistribution, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, user_id::text, distribution_id::text
		FROM user_distributions
		WHERE user_id::text = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("distributions: list assigned: %w", err)
	}
	defer rows.Close()

	out := []UserDistribution{}
	for rows.Next() {
		var ud UserDistribution
		if err := rows.Scan(&ud.ID, &ud.UserID, &ud.DistributionID); err != nil {
			return nil, fmt.Errorf("distributions: scan assigned: %w", err)
		}
		out = append(out, ud)
	}
	return out, rows.Err()
}

// AssignedBookerIDs returns the salesman ids of the bookers a courier serves.
func (r *PGRepository) AssignedBookerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(assigned_booker_ids, '{}')::text[] FROM users WHERE id::text = $1`, userID).Scan(&ids)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("distributions: booker ids: %w", err)
	}
	return ids, nil
}

var _ Repository = (*PGRepository)(nil)
