package grants

import (
	"fmt"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// MergeMode selects how incoming actions combine with an existing grant.
type MergeMode string

const (
	// MergeAdd unions the incoming actions into the existing set.
	MergeAdd MergeMode = "add"
	// MergeReplace overwrites the existing set. Default.
	MergeReplace MergeMode = "replace"
	// MergeRemove subtracts the incoming actions from the existing set.
	MergeRemove MergeMode = "remove"
)

// ParseMergeMode validates a raw actionType value. Empty means replace.
func ParseMergeMode(raw string) (MergeMode, error) {
	switch MergeMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return MergeReplace, nil
	case MergeAdd:
		return MergeAdd, nil
	case MergeReplace:
		return MergeReplace, nil
	case MergeRemove:
		return MergeRemove, nil
	}
	return "", fmt.Errorf("%w: actionType %q is not one of add, replace, remove", httpx.ErrValidation, raw)
}

// actionOrder fixes the canonical order actions are persisted and returned in,
// so that repeated aggregations of the same data are deep-equal.
var actionOrder = []string{"new", "edit", "view", "print", "delete", "export"}

var actionRank = func() map[string]int {
	m := make(map[string]int, len(actionOrder))
	for i, a := range actionOrder {
		m[a] = i
	}
	return m
}()

// Actions returns the fixed action vocabulary.
func Actions() []string {
	out := make([]string, len(actionOrder))
	copy(out, actionOrder)
	return out
}

// Domain errors. All wrap an httpx sentinel so handlers map them to the
// right status without per-error switches.
var (
	ErrRoleRequired  = fmt.Errorf("%w: role is required", httpx.ErrValidation)
	ErrMenuRequired  = fmt.Errorf("%w: menuId is required", httpx.ErrValidation)
	ErrRoleMissing   = fmt.Errorf("%w: role does not exist", httpx.ErrValidation)
	ErrMenuMissing   = fmt.Errorf("%w: menu does not exist", httpx.ErrValidation)
	ErrUnknownAction = fmt.Errorf("%w: unknown action", httpx.ErrValidation)
	ErrGrantNotFound = fmt.Errorf("grant: %w", httpx.ErrNotFound)
	ErrRemoveNoGrant = fmt.Errorf("%w: cannot remove actions from a non-existent grant", httpx.ErrConflict)
)

// NormalizeActions lowercases, trims, deduplicates and orders the input
// against the fixed vocabulary. Unknown tokens are rejected together so the
// caller sees every offending value at once.
func NormalizeActions(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	var invalid []string
	for _, a := range raw {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if _, ok := actionRank[a]; !ok {
			invalid = append(invalid, a)
			continue
		}
		seen[a] = struct{}{}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, strings.Join(invalid, ", "))
	}
	return orderedActions(seen), nil
}

func orderedActions(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for _, a := range actionOrder {
		if _, ok := set[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

func unionActions(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		set[x] = struct{}{}
	}
	return orderedActions(set)
}

func diffActions(a, b []string) []string {
	remove := make(map[string]struct{}, len(b))
	for _, x := range b {
		remove[x] = struct{}{}
	}
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		if _, gone := remove[x]; !gone {
			set[x] = struct{}{}
		}
	}
	return orderedActions(set)
}

// Grant records which actions a role may perform on a menu.
// The (role, menu) pair is unique; the UUID exists for addressing single
// rows over the API.
type Grant struct {
	ID        string    `json:"id"`
	RoleSlug  string    `json:"role"`
	MenuSlug  string    `json:"menuId"`
	Actions   []string  `json:"actions"`
	CreatedBy string    `json:"createdBy"`
	UpdatedBy string    `json:"updatedBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ApplyGrantInput describes one permission-change request.
type ApplyGrantInput struct {
	Role       string
	MenuID     string
	Actions    []string
	ActionType string
	ActorID    string
}

// MenuCapability is the leaf of the capability structure.
type MenuCapability struct {
	Name    string   `json:"name"`
	MenuID  string   `json:"menuId"`
	Actions []string `json:"actions"`
}

// CategoryMenus holds the three fixed category buckets. All buckets are
// always present so clients get a stable shape.
type CategoryMenus struct {
	Master      []MenuCapability `json:"Master"`
	Transaction []MenuCapability `json:"Transaction"`
	Report      []MenuCapability `json:"Report"`
}

// ModuleCapability is one module entry of the navigation-ready structure.
type ModuleCapability struct {
	ModuleName string        `json:"moduleName"`
	ModulePath string        `json:"modulePath"`
	OrderBy    int           `json:"orderBy"`
	Menus      CategoryMenus `json:"menus"`
}
