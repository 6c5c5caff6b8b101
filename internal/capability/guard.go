package capability

import (
	"log/slog"
	"net/http"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// DecisionObserver counts allow/deny outcomes.
type DecisionObserver interface {
	PermissionDecision(allowed bool)
}

// Guard blocks routes the principal's role has no capability for.
// Every failure path denies: a missing principal, a role without the
// grant, or a capability fetch error all read the same from outside.
type Guard struct {
	source   Source
	logger   *slog.Logger
	observer DecisionObserver
}

// NewGuard constructs a Guard. observer may be nil.
func NewGuard(source Source, logger *slog.Logger, observer DecisionObserver) *Guard {
	return &Guard{source: source, logger: logger, observer: observer}
}

// Require ensures the current role carries the action on the given menu
// before the request reaches the handler.
func (g *Guard) Require(module, menu, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil || principal.Role == "" {
				g.deny(w)
				return
			}
			caps, err := g.source.Capabilities(r.Context(), principal.Role)
			if err != nil {
				if g.logger != nil {
					g.logger.Error("guard capability fetch", slog.String("role", principal.Role), slog.Any("error", err))
				}
				g.deny(w)
				return
			}
			if !Allowed(caps, module, menu, action) {
				g.deny(w)
				return
			}
			if g.observer != nil {
				g.observer.PermissionDecision(true)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) deny(w http.ResponseWriter) {
	if g.observer != nil {
		g.observer.PermissionDecision(false)
	}
	// Neutral body; the response never names the grants that were checked.
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "not authorized")
}
