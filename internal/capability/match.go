// Package capability holds the client-facing view of a role's permissions:
// a synchronous predicate over the aggregated capability structure, the
// session-scoped cache behind it, and the route guard that consumes it.
package capability

import (
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/grants"
)

// Allowed reports whether the capability set permits an action on a menu.
// The module matches by display name or path, the menu by display name or
// slug; callers reference both inconsistently, so either key is accepted.
// An empty menu makes the check module-wide: true when any menu in the
// module carries the action. Anything unresolved is false, never an error.
func Allowed(caps []grants.ModuleCapability, module, menu, action string) bool {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return false
	}

	entry := findModule(caps, module)
	if entry == nil {
		return false
	}

	if strings.TrimSpace(menu) == "" {
		for _, bucket := range buckets(entry) {
			for _, m := range bucket {
				if hasAction(m.Actions, action) {
					return true
				}
			}
		}
		return false
	}

	for _, bucket := range buckets(entry) {
		for _, m := range bucket {
			if strings.EqualFold(m.Name, menu) || strings.EqualFold(m.MenuID, menu) {
				return hasAction(m.Actions, action)
			}
		}
	}
	return false
}

func findModule(caps []grants.ModuleCapability, key string) *grants.ModuleCapability {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	for i := range caps {
		if strings.EqualFold(caps[i].ModuleName, key) || strings.EqualFold(caps[i].ModulePath, key) {
			return &caps[i]
		}
	}
	return nil
}

// buckets returns the category slices in the fixed Master→Transaction→Report
// scan order; the first menu match across that order wins.
func buckets(m *grants.ModuleCapability) [][]grants.MenuCapability {
	return [][]grants.MenuCapability{m.Menus.Master, m.Menus.Transaction, m.Menus.Report}
}

func hasAction(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
