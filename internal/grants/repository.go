package grants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists grants in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the row-locked operations the merge engine runs
// inside a single transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, roleSlug, menuSlug string) (Grant, error)
	Upsert(ctx context.Context, grant Grant) (Grant, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
// GetForUpdate takes a row lock on the (role, menu) pair, so concurrent
// merges for the same pair serialize instead of losing updates.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *txRepo) GetForUpdate(ctx context.Context, roleSlug, menuSlug string) (Grant, error) {
	var g Grant
	err := r.tx.QueryRow(ctx,
		`SELECT id, role_slug, menu_slug, actions, created_by, updated_by, created_at, updated_at
		 FROM grants WHERE role_slug = $1 AND menu_slug = $2 FOR UPDATE`,
		roleSlug, menuSlug,
	).Scan(&g.ID, &g.RoleSlug, &g.MenuSlug, &g.Actions, &g.CreatedBy, &g.UpdatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrGrantNotFound
		}
		return Grant{}, fmt.Errorf("grants: get for update: %w", err)
	}
	return g, nil
}

func (r *txRepo) Upsert(ctx context.Context, grant Grant) (Grant, error) {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	var g Grant
	err := r.tx.QueryRow(ctx,
		`INSERT INTO grants (id, role_slug, menu_slug, actions, created_by, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (role_slug, menu_slug) DO UPDATE
		 SET actions = EXCLUDED.actions, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		 RETURNING id, role_slug, menu_slug, actions, created_by, updated_by, created_at, updated_at`,
		grant.ID, grant.RoleSlug, grant.MenuSlug, grant.Actions, grant.CreatedBy, grant.UpdatedBy,
	).Scan(&g.ID, &g.RoleSlug, &g.MenuSlug, &g.Actions, &g.CreatedBy, &g.UpdatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return Grant{}, fmt.Errorf("grants: upsert: %w", err)
	}
	return g, nil
}

// Delete removes a grant by id and returns the removed row so callers can
// invalidate the role's capability snapshot.
func (r *Repository) Delete(ctx context.Context, id string) (Grant, error) {
	var g Grant
	err := r.pool.QueryRow(ctx,
		`DELETE FROM grants WHERE id = $1
		 RETURNING id, role_slug, menu_slug, actions, created_by, updated_by, created_at, updated_at`,
		id,
	).Scan(&g.ID, &g.RoleSlug, &g.MenuSlug, &g.Actions, &g.CreatedBy, &g.UpdatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrGrantNotFound
		}
		return Grant{}, fmt.Errorf("grants: delete: %w", err)
	}
	return g, nil
}

// CapabilityRow is one joined grant→menu→module row used by the aggregator.
type CapabilityRow struct {
	MenuSlug     string
	MenuName     string
	Category     string
	Actions      []string
	ModuleSlug   string
	ModuleName   string
	ModulePath   string
	ModuleOrder  int
	ModuleActive bool
}

// ListCapabilityRows returns the joined rows for one role. The inner joins
// silently drop grants whose menu or module no longer exists; inactive
// modules are filtered during aggregation so the rule stays visible there.
// Ordering by module insertion then menu weight keeps the base sequence
// deterministic for the stable sort downstream.
func (r *Repository) ListCapabilityRows(ctx context.Context, roleSlug string) ([]CapabilityRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT mn.slug, mn.name, mn.category, g.actions,
		        md.slug, md.name, md.path, COALESCE(md.order_by, $2), md.is_active
		 FROM grants g
		 JOIN menus mn ON mn.slug = g.menu_slug
		 JOIN modules md ON md.slug = mn.module_slug
		 WHERE g.role_slug = $1
		 ORDER BY md.id, mn.order_by, mn.id`,
		roleSlug, defaultModuleOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("grants: list capability rows: %w", err)
	}
	defer rows.Close()

	var result []CapabilityRow
	for rows.Next() {
		var row CapabilityRow
		if err := rows.Scan(&row.MenuSlug, &row.MenuName, &row.Category, &row.Actions,
			&row.ModuleSlug, &row.ModuleName, &row.ModulePath, &row.ModuleOrder, &row.ModuleActive); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteOrphans removes grants whose menu has been deleted. Run from the
// background sweep job; the aggregator already excludes these rows.
func (r *Repository) DeleteOrphans(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM grants g WHERE NOT EXISTS (SELECT 1 FROM menus mn WHERE mn.slug = g.menu_slug)`)
	if err != nil {
		return 0, fmt.Errorf("grants: delete orphans: %w", err)
	}
	return tag.RowsAffected(), nil
}
