package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/fieldops/internal/platform/db"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindActiveBySalesmanID(ctx context.Context, salesmanID string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, in NewUser) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id::text, salesman_id, salesman_name, email, phone, pin, role, is_active,
	COALESCE(assigned_booker_ids, '{}')::text[], created_at`

type userRow interface {
	Scan(dest ...any) error
}

func scanUser(row userRow) (*User, error) {
	var (
		u         User
		pinHash   *string
		role      *string
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&u.ID, &u.SalesmanID, &u.SalesmanName, &u.Email, &u.Phone, &pinHash, &role,
		&u.IsActive, &u.AssignedBookerIDs, &createdAt); err != nil {
		return nil, err
	}
	if pinHash != nil {
		u.PinHash = *pinHash
	}
	if role != nil {
		u.Role = NormalizeRole(*role)
	} else {
		u.Role = RoleSalesman
	}
	u.CreatedAt = createdAt.Time
	return &u, nil
}

// FindActiveBySalesmanID fetches an active user by salesman id.
func (r *PGRepository) FindActiveBySalesmanID(ctx context.Context, salesmanID string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE salesman_id = $1 AND is_active = true`, salesmanID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: find user by salesman id: %w", err)
	}
	return user, nil
}

// FindByID fetches an active user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id::text = $1 AND is_active = true`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	return user, nil
}

// Create inserts an active user. The role is left to the column default.
func (r *PGRepository) Create(ctx context.Context, in NewUser) (*User, error) {
	var created *User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE salesman_id = $1)`, in.SalesmanID).Scan(&exists); err != nil {
			return fmt.Errorf("auth: check salesman id: %w", err)
		}
		if exists {
			return ErrDuplicateSalesman
		}
		row := tx.QueryRow(ctx, `INSERT INTO users (salesman_id, salesman_name, email, phone, pin, is_active)
			VALUES ($1, $2, $3, $4, $5, true)
			RETURNING `+userColumns,
			in.SalesmanID, in.SalesmanName, in.Email, in.Phone, in.PinHash)
		user, err := scanUser(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateSalesman
			}
			return fmt.Errorf("auth: insert user: %w", err)
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

var _ Repository = (*PGRepository)(nil)
