package capability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/grants"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type countingObserver struct {
	mu      sync.Mutex
	allowed int
	denied  int
}

func (o *countingObserver) PermissionDecision(allowed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if allowed {
		o.allowed++
	} else {
		o.denied++
	}
}

type errorSource struct{}

func (errorSource) Capabilities(ctx context.Context, roleSlug string) ([]grants.ModuleCapability, error) {
	return nil, errors.New("aggregator unavailable")
}

func guardRequest(t *testing.T, guard *Guard, principal *shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := guard.Require("Inventory", "Items", "edit")(next)

	req := httptest.NewRequest(http.MethodGet, "/inventory/items", nil)
	if principal != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGuardAllowsGrantedAction(t *testing.T) {
	observer := &countingObserver{}
	guard := NewGuard(okSource(managerCaps()), discardLogger(), observer)

	rec := guardRequest(t, guard, &shared.Principal{UserID: 1, Email: "m@x", Role: "manager"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 1, observer.allowed)
	require.Equal(t, 0, observer.denied)
}

func TestGuardDeniesMissingPrincipal(t *testing.T) {
	observer := &countingObserver{}
	guard := NewGuard(okSource(managerCaps()), discardLogger(), observer)

	rec := guardRequest(t, guard, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 1, observer.denied)
}

func TestGuardDeniesUngrantedAction(t *testing.T) {
	guard := NewGuard(okSource(managerCaps()), discardLogger(), nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	handler := guard.Require("Inventory", "Items", "delete")(next)

	req := httptest.NewRequest(http.MethodDelete, "/inventory/items/1", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), &shared.Principal{UserID: 1, Role: "manager"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGuardDeniesOnSourceError(t *testing.T) {
	observer := &countingObserver{}
	guard := NewGuard(errorSource{}, discardLogger(), observer)

	rec := guardRequest(t, guard, &shared.Principal{UserID: 1, Role: "manager"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 1, observer.denied)
	require.Contains(t, rec.Body.String(), "not authorized")
	require.NotContains(t, rec.Body.String(), "Items")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
