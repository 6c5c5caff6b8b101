package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all roles in insertion order.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT slug, name, is_active, is_system, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.Slug, &role.Name, &role.IsActive, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// Get fetches a role by slug.
func (r *Repository) Get(ctx context.Context, slug string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT slug, name, is_active, is_system, created_at, updated_at FROM roles WHERE slug = $1`,
		slug,
	).Scan(&role.Slug, &role.Name, &role.IsActive, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %q: %w", slug, httpx.ErrNotFound)
		}
		return Role{}, fmt.Errorf("roles: get: %w", err)
	}
	return role, nil
}

// Exists reports whether a role slug is registered.
func (r *Repository) Exists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("roles: exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new role. A duplicate slug is a conflict.
func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	var created Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (slug, name, is_active, is_system)
		 VALUES ($1, $2, $3, $4)
		 RETURNING slug, name, is_active, is_system, created_at, updated_at`,
		role.Slug, role.Name, role.IsActive, role.IsSystem,
	).Scan(&created.Slug, &created.Name, &created.IsActive, &created.IsSystem, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Role{}, fmt.Errorf("%w: role %q already exists", httpx.ErrConflict, role.Slug)
		}
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	return created, nil
}

// Update renames a role and toggles its active flag.
func (r *Repository) Update(ctx context.Context, role Role) (Role, error) {
	var updated Role
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, is_active = $3, updated_at = NOW()
		 WHERE slug = $1
		 RETURNING slug, name, is_active, is_system, created_at, updated_at`,
		role.Slug, role.Name, role.IsActive,
	).Scan(&updated.Slug, &updated.Name, &updated.IsActive, &updated.IsSystem, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %q: %w", role.Slug, httpx.ErrNotFound)
		}
		return Role{}, fmt.Errorf("roles: update: %w", err)
	}
	return updated, nil
}

// Delete removes a role by slug.
func (r *Repository) Delete(ctx context.Context, slug string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("roles: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %q: %w", slug, httpx.ErrNotFound)
	}
	return nil
}

// GrantCount counts grants still referencing the role.
func (r *Repository) GrantCount(ctx context.Context, slug string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM grants WHERE role_slug = $1`, slug).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("roles: grant count: %w", err)
	}
	return count, nil
}
