package capability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/grants"
)

func managerCaps() []grants.ModuleCapability {
	return []grants.ModuleCapability{
		{
			ModuleName: "Inventory",
			ModulePath: "/inventory",
			OrderBy:    1,
			Menus: grants.CategoryMenus{
				Master: []grants.MenuCapability{
					{Name: "Items", MenuID: "items", Actions: []string{"new", "edit", "view"}},
				},
				Transaction: []grants.MenuCapability{},
				Report: []grants.MenuCapability{
					{Name: "Stock Report", MenuID: "stock-report", Actions: []string{"view", "export"}},
				},
			},
		},
	}
}

type scriptedSource struct {
	mu      sync.Mutex
	results []func() ([]grants.ModuleCapability, error)
	calls   int
	block   chan struct{}
}

func (s *scriptedSource) Capabilities(ctx context.Context, roleSlug string) ([]grants.ModuleCapability, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx]()
}

func okSource(caps []grants.ModuleCapability) *scriptedSource {
	return &scriptedSource{results: []func() ([]grants.ModuleCapability, error){
		func() ([]grants.ModuleCapability, error) { return caps, nil },
	}}
}

func TestCacheFailsClosedBeforeLoad(t *testing.T) {
	cache := NewCache(okSource(managerCaps()), Config{})
	cache.SetRole("manager")

	require.Equal(t, StatusIdle, cache.Status())
	require.False(t, cache.Can("Inventory", "Items", "view"))
}

func TestCacheLoadThenCan(t *testing.T) {
	cache := NewCache(okSource(managerCaps()), Config{})
	cache.SetRole("manager")
	require.NoError(t, cache.Load(context.Background()))
	require.Equal(t, StatusReady, cache.Status())

	require.True(t, cache.Can("Inventory", "Items", "view"))
	require.True(t, cache.Can("inventory", "items", "VIEW"))
	require.True(t, cache.Can("/inventory", "Stock Report", "export"))
	require.False(t, cache.Can("Inventory", "Items", "delete"))
	require.False(t, cache.Can("Sales", "Items", "view"))
	require.False(t, cache.Can("Inventory", "Ghost", "view"))
	require.False(t, cache.Can("Inventory", "Items", ""))
}

func TestCacheModuleWideCheck(t *testing.T) {
	cache := NewCache(okSource(managerCaps()), Config{})
	cache.SetRole("manager")
	require.NoError(t, cache.Load(context.Background()))

	require.True(t, cache.Can("Inventory", "", "export"))
	require.False(t, cache.Can("Inventory", "", "delete"))
}

func TestCacheLoadWithoutRoleErrors(t *testing.T) {
	cache := NewCache(okSource(managerCaps()), Config{})
	err := cache.Load(context.Background())
	require.Error(t, err)
	require.Equal(t, StatusError, cache.Status())
}

func TestCacheErrorClearsByDefault(t *testing.T) {
	boom := errors.New("aggregate down")
	source := &scriptedSource{results: []func() ([]grants.ModuleCapability, error){
		func() ([]grants.ModuleCapability, error) { return managerCaps(), nil },
		func() ([]grants.ModuleCapability, error) { return nil, boom },
	}}
	cache := NewCache(source, Config{Attempts: 1})
	cache.SetRole("manager")

	require.NoError(t, cache.Load(context.Background()))
	require.True(t, cache.Can("Inventory", "Items", "view"))

	require.ErrorIs(t, cache.Load(context.Background()), boom)
	require.Equal(t, StatusError, cache.Status())
	require.False(t, cache.Can("Inventory", "Items", "view"))
}

func TestCacheRetainOnErrorKeepsPreviousSet(t *testing.T) {
	boom := errors.New("aggregate down")
	source := &scriptedSource{results: []func() ([]grants.ModuleCapability, error){
		func() ([]grants.ModuleCapability, error) { return managerCaps(), nil },
		func() ([]grants.ModuleCapability, error) { return nil, boom },
	}}
	cache := NewCache(source, Config{Attempts: 1, RetainOnError: true})
	cache.SetRole("manager")

	require.NoError(t, cache.Load(context.Background()))
	require.ErrorIs(t, cache.Load(context.Background()), boom)
	require.Equal(t, StatusError, cache.Status())
	require.True(t, cache.Can("Inventory", "Items", "view"))
}

func TestCacheRetriesTransientFailures(t *testing.T) {
	boom := errors.New("transient")
	source := &scriptedSource{results: []func() ([]grants.ModuleCapability, error){
		func() ([]grants.ModuleCapability, error) { return nil, boom },
		func() ([]grants.ModuleCapability, error) { return nil, boom },
		func() ([]grants.ModuleCapability, error) { return managerCaps(), nil },
	}}
	cache := NewCache(source, Config{})
	cache.SetRole("manager")

	require.NoError(t, cache.Load(context.Background()))
	require.Equal(t, StatusReady, cache.Status())
	require.Equal(t, 3, source.calls)
}

func TestCacheRoleSwitchClearsImmediately(t *testing.T) {
	cache := NewCache(okSource(managerCaps()), Config{})
	cache.SetRole("manager")
	require.NoError(t, cache.Load(context.Background()))
	require.True(t, cache.Can("Inventory", "Items", "view"))

	cache.SetRole("cashier")
	require.Equal(t, StatusIdle, cache.Status())
	require.False(t, cache.Can("Inventory", "Items", "view"))
}

func TestCacheSameRoleIsNoOp(t *testing.T) {
	cache := NewCache(okSource(managerCaps()), Config{})
	cache.SetRole("manager")
	require.NoError(t, cache.Load(context.Background()))

	cache.SetRole("manager")
	require.Equal(t, StatusReady, cache.Status())
	require.True(t, cache.Can("Inventory", "Items", "view"))
}

func TestCacheDiscardsStaleLoadAfterRoleSwitch(t *testing.T) {
	source := okSource(managerCaps())
	source.block = make(chan struct{})
	cache := NewCache(source, Config{Attempts: 1})
	cache.SetRole("manager")

	done := make(chan error, 1)
	go func() {
		done <- cache.Load(context.Background())
	}()

	// Switch roles while the first load is still blocked in the source;
	// its result must not surface for the new role.
	time.Sleep(10 * time.Millisecond)
	cache.SetRole("cashier")
	close(source.block)
	require.NoError(t, <-done)

	require.Equal(t, StatusIdle, cache.Status())
	require.False(t, cache.Can("Inventory", "Items", "view"))
}
