package grants

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const defaultModuleOrder = catalog.DefaultOrderBy

// RowSource lists the joined grant rows for a role.
type RowSource interface {
	ListCapabilityRows(ctx context.Context, roleSlug string) ([]CapabilityRow, error)
}

// AggregationObserver receives timings for capability aggregations.
type AggregationObserver interface {
	ObserveAggregation(d time.Duration)
}

// Aggregator produces the navigation-ready capability structure for a
// role. Results are optionally snapshotted in Redis; concurrent requests
// for the same role collapse into a single aggregation.
type Aggregator struct {
	rows      RowSource
	snapshots *SnapshotStore
	observer  AggregationObserver
	group     singleflight.Group
}

// NewAggregator builds an Aggregator. snapshots and observer may be nil.
func NewAggregator(rows RowSource, snapshots *SnapshotStore, observer AggregationObserver) *Aggregator {
	return &Aggregator{rows: rows, snapshots: snapshots, observer: observer}
}

// Capabilities returns the module capabilities for a role, module entries
// sorted ascending by ordering weight. An unknown or grantless role yields
// an empty slice, not an error.
func (a *Aggregator) Capabilities(ctx context.Context, roleSlug string) ([]ModuleCapability, error) {
	roleSlug = strings.TrimSpace(roleSlug)
	if roleSlug == "" {
		return []ModuleCapability{}, nil
	}

	if a.snapshots != nil {
		if caps, ok := a.snapshots.Get(ctx, roleSlug); ok {
			return caps, nil
		}
	}

	v, err, _ := a.group.Do(roleSlug, func() (any, error) {
		started := time.Now()
		rows, err := a.rows.ListCapabilityRows(ctx, roleSlug)
		if err != nil {
			return nil, fmt.Errorf("grants: aggregate capabilities: %w", err)
		}
		caps := Aggregate(rows)
		if a.observer != nil {
			a.observer.ObserveAggregation(time.Since(started))
		}
		if a.snapshots != nil {
			_ = a.snapshots.Set(ctx, roleSlug, caps)
		}
		return caps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ModuleCapability), nil
}

// Aggregate groups joined grant rows by module, then by menu category.
// All three category buckets are always initialised; menus with an unknown
// category and modules that are inactive contribute nothing. Module order
// is a stable ascending sort on the ordering weight, so ties keep their
// first-encountered position.
func Aggregate(rows []CapabilityRow) []ModuleCapability {
	byModule, moduleOrder := shared.GroupBy(rows, func(r CapabilityRow) string { return r.ModuleSlug })

	modules := make([]ModuleCapability, 0, len(moduleOrder))
	for _, slug := range moduleOrder {
		moduleRows := byModule[slug]
		if len(moduleRows) == 0 || !moduleRows[0].ModuleActive {
			continue
		}

		entry := ModuleCapability{
			ModuleName: moduleRows[0].ModuleName,
			ModulePath: moduleRows[0].ModulePath,
			OrderBy:    moduleRows[0].ModuleOrder,
			Menus: CategoryMenus{
				Master:      []MenuCapability{},
				Transaction: []MenuCapability{},
				Report:      []MenuCapability{},
			},
		}
		if entry.OrderBy == 0 {
			entry.OrderBy = defaultModuleOrder
		}

		for _, row := range moduleRows {
			category, ok := catalog.ParseCategory(row.Category)
			if !ok {
				continue
			}
			leaf := MenuCapability{
				Name:    row.MenuName,
				MenuID:  row.MenuSlug,
				Actions: row.Actions,
			}
			if leaf.Actions == nil {
				leaf.Actions = []string{}
			}
			switch category {
			case catalog.CategoryMaster:
				entry.Menus.Master = append(entry.Menus.Master, leaf)
			case catalog.CategoryTransaction:
				entry.Menus.Transaction = append(entry.Menus.Transaction, leaf)
			case catalog.CategoryReport:
				entry.Menus.Report = append(entry.Menus.Report, leaf)
			}
		}
		modules = append(modules, entry)
	}

	sort.SliceStable(modules, func(i, j int) bool {
		return modules[i].OrderBy < modules[j].OrderBy
	})
	return modules
}
