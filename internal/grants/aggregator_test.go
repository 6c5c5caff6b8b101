package grants

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func sampleRows() []CapabilityRow {
	return []CapabilityRow{
		{MenuSlug: "sales-orders", MenuName: "Sales Orders", Category: "Transaction", Actions: []string{"new", "view"},
			ModuleSlug: "sales", ModuleName: "Sales", ModulePath: "/sales", ModuleOrder: 5, ModuleActive: true},
		{MenuSlug: "customers", MenuName: "Customers", Category: "Master", Actions: []string{"view"},
			ModuleSlug: "sales", ModuleName: "Sales", ModulePath: "/sales", ModuleOrder: 5, ModuleActive: true},
		{MenuSlug: "items", MenuName: "Items", Category: "Master", Actions: []string{"new", "edit", "view"},
			ModuleSlug: "inventory", ModuleName: "Inventory", ModulePath: "/inventory", ModuleOrder: 1, ModuleActive: true},
		{MenuSlug: "stock-report", MenuName: "Stock Report", Category: "Report", Actions: []string{"view", "export"},
			ModuleSlug: "inventory", ModuleName: "Inventory", ModulePath: "/inventory", ModuleOrder: 1, ModuleActive: true},
	}
}

func TestAggregateGroupsAndSorts(t *testing.T) {
	rows := sampleRows()
	rows = append(rows,
		CapabilityRow{MenuSlug: "settings", MenuName: "Settings", Category: "Master", Actions: []string{"view"},
			ModuleSlug: "system", ModuleName: "System", ModulePath: "/system", ModuleOrder: 0, ModuleActive: true},
		CapabilityRow{MenuSlug: "roles", MenuName: "Roles", Category: "Master", Actions: []string{"view"},
			ModuleSlug: "administration", ModuleName: "Administration", ModulePath: "/administration", ModuleOrder: 1, ModuleActive: true},
	)

	modules := Aggregate(rows)
	require.Len(t, modules, 4)

	// Ascending by weight; the tie between the two weight-1 modules keeps
	// row order, the zero weight falls back to the default and sorts last.
	require.Equal(t, "Inventory", modules[0].ModuleName)
	require.Equal(t, "Administration", modules[1].ModuleName)
	require.Equal(t, "Sales", modules[2].ModuleName)
	require.Equal(t, "System", modules[3].ModuleName)
	require.Equal(t, 99, modules[3].OrderBy)

	inventory := modules[0]
	require.Equal(t, "/inventory", inventory.ModulePath)
	require.Len(t, inventory.Menus.Master, 1)
	require.Len(t, inventory.Menus.Report, 1)
	require.NotNil(t, inventory.Menus.Transaction)
	require.Empty(t, inventory.Menus.Transaction)
	require.Equal(t, "items", inventory.Menus.Master[0].MenuID)
	require.Equal(t, []string{"new", "edit", "view"}, inventory.Menus.Master[0].Actions)
}

func TestAggregateSkipsInactiveModules(t *testing.T) {
	rows := sampleRows()
	rows = append(rows, CapabilityRow{
		MenuSlug: "legacy", MenuName: "Legacy", Category: "Master", Actions: []string{"view"},
		ModuleSlug: "legacy", ModuleName: "Legacy", ModulePath: "/legacy", ModuleOrder: 1, ModuleActive: false,
	})

	modules := Aggregate(rows)
	for _, m := range modules {
		require.NotEqual(t, "Legacy", m.ModuleName)
	}
}

func TestAggregateDropsUnknownCategories(t *testing.T) {
	rows := []CapabilityRow{
		{MenuSlug: "dash", MenuName: "Dashboard", Category: "Widget", Actions: []string{"view"},
			ModuleSlug: "home", ModuleName: "Home", ModulePath: "/home", ModuleOrder: 1, ModuleActive: true},
	}
	modules := Aggregate(rows)
	require.Len(t, modules, 1)
	require.Empty(t, modules[0].Menus.Master)
	require.Empty(t, modules[0].Menus.Transaction)
	require.Empty(t, modules[0].Menus.Report)
}

func TestAggregateEmptyActionsStayEmptySlice(t *testing.T) {
	rows := []CapabilityRow{
		{MenuSlug: "items", MenuName: "Items", Category: "Master", Actions: nil,
			ModuleSlug: "inventory", ModuleName: "Inventory", ModulePath: "/inventory", ModuleOrder: 1, ModuleActive: true},
	}
	modules := Aggregate(rows)
	require.Len(t, modules, 1)
	require.NotNil(t, modules[0].Menus.Master[0].Actions)
	require.Empty(t, modules[0].Menus.Master[0].Actions)
}

func TestAggregateDeterministic(t *testing.T) {
	first := Aggregate(sampleRows())
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Aggregate(sampleRows()))
	}
}

// Applies grants through the merge engine and aggregates the resulting
// rows: one module, one menu per category, capability shape end to end.
func TestApplyThenAggregateScenario(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.ApplyGrant(ctx, ApplyGrantInput{Role: "manager", MenuID: "items", Actions: []string{"edit", "new", "view"}})
	require.NoError(t, err)
	_, err = svc.ApplyGrant(ctx, ApplyGrantInput{Role: "cashier", MenuID: "sales-orders", Actions: []string{"view", "print"}})
	require.NoError(t, err)

	menuMeta := map[string]CapabilityRow{
		"items": {MenuName: "Items", Category: "Master",
			ModuleSlug: "inventory", ModuleName: "Inventory", ModulePath: "/inventory", ModuleOrder: 1, ModuleActive: true},
		"sales-orders": {MenuName: "Sales Orders", Category: "Transaction",
			ModuleSlug: "inventory", ModuleName: "Inventory", ModulePath: "/inventory", ModuleOrder: 1, ModuleActive: true},
	}
	var rows []CapabilityRow
	for _, g := range []Grant{
		repo.grants[grantKey("manager", "items")],
		repo.grants[grantKey("cashier", "sales-orders")],
	} {
		row := menuMeta[g.MenuSlug]
		row.MenuSlug = g.MenuSlug
		row.Actions = g.Actions
		rows = append(rows, row)
	}

	modules := Aggregate(rows)
	require.Len(t, modules, 1)
	module := modules[0]
	require.Equal(t, "Inventory", module.ModuleName)
	require.Len(t, module.Menus.Master, 1)
	require.Len(t, module.Menus.Transaction, 1)
	require.Empty(t, module.Menus.Report)
	require.Equal(t, []string{"new", "edit", "view"}, module.Menus.Master[0].Actions)
	require.Equal(t, []string{"view", "print"}, module.Menus.Transaction[0].Actions)
}

type fakeRowSource struct {
	rows  []CapabilityRow
	calls atomic.Int64
}

func (f *fakeRowSource) ListCapabilityRows(ctx context.Context, roleSlug string) ([]CapabilityRow, error) {
	f.calls.Add(1)
	return f.rows, nil
}

func TestAggregatorEmptyRoleYieldsEmptySlice(t *testing.T) {
	agg := NewAggregator(&fakeRowSource{}, nil, nil)
	caps, err := agg.Capabilities(context.Background(), "  ")
	require.NoError(t, err)
	require.NotNil(t, caps)
	require.Empty(t, caps)
}

func TestAggregatorUsesSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := &fakeRowSource{rows: sampleRows()}
	snapshots := NewSnapshotStore(client, time.Minute)
	agg := NewAggregator(source, snapshots, nil)
	ctx := context.Background()

	first, err := agg.Capabilities(ctx, "manager")
	require.NoError(t, err)
	require.EqualValues(t, 1, source.calls.Load())

	second, err := agg.Capabilities(ctx, "manager")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, source.calls.Load())

	require.NoError(t, snapshots.Invalidate(ctx, "manager"))
	_, err = agg.Capabilities(ctx, "manager")
	require.NoError(t, err)
	require.EqualValues(t, 2, source.calls.Load())
}
