package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for the menu/module catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListModules returns modules sorted by ordering weight. Ties keep
// insertion order; the id tiebreak makes the sort total and repeatable.
func (r *Repository) ListModules(ctx context.Context, activeOnly bool) ([]Module, error) {
	query := `SELECT slug, name, path, order_by, is_active, created_at FROM modules`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY order_by, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: list modules: %w", err)
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.Slug, &m.Name, &m.Path, &m.OrderBy, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return modules, nil
}

// GetMenu fetches a menu by slug.
func (r *Repository) GetMenu(ctx context.Context, slug string) (Menu, error) {
	var m Menu
	err := r.pool.QueryRow(ctx,
		`SELECT slug, name, module_slug, category, path, order_by, parent_slug FROM menus WHERE slug = $1`,
		slug,
	).Scan(&m.Slug, &m.Name, &m.ModuleSlug, &m.Category, &m.Path, &m.OrderBy, &m.ParentSlug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Menu{}, fmt.Errorf("menu %q: %w", slug, httpx.ErrNotFound)
		}
		return Menu{}, fmt.Errorf("catalog: get menu: %w", err)
	}
	return m, nil
}

// MenuExists reports whether a menu slug is registered.
func (r *Repository) MenuExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM menus WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("catalog: menu exists: %w", err)
	}
	return exists, nil
}

// ListMenusByModule returns the menus owned by a module in display order.
func (r *Repository) ListMenusByModule(ctx context.Context, moduleSlug string) ([]Menu, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT slug, name, module_slug, category, path, order_by, parent_slug FROM menus WHERE module_slug = $1 ORDER BY order_by, id`,
		moduleSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: list menus: %w", err)
	}
	defer rows.Close()

	var menus []Menu
	for rows.Next() {
		var m Menu
		if err := rows.Scan(&m.Slug, &m.Name, &m.ModuleSlug, &m.Category, &m.Path, &m.OrderBy, &m.ParentSlug); err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return menus, nil
}
