package catalog

import "time"

// Category classifies a menu's purpose inside its module.
type Category string

const (
	// CategoryMaster groups master-data entry menus.
	CategoryMaster Category = "Master"
	// CategoryTransaction groups transactional menus.
	CategoryTransaction Category = "Transaction"
	// CategoryReport groups reporting menus.
	CategoryReport Category = "Report"
)

// Categories lists the known categories in bucket iteration order.
func Categories() []Category {
	return []Category{CategoryMaster, CategoryTransaction, CategoryReport}
}

// ParseCategory validates a raw category value.
func ParseCategory(raw string) (Category, bool) {
	switch Category(raw) {
	case CategoryMaster, CategoryTransaction, CategoryReport:
		return Category(raw), true
	}
	return "", false
}

// DefaultOrderBy applies when a module has no explicit ordering weight.
const DefaultOrderBy = 99

// RootMenuSlug is the parent marker for top-level menus.
const RootMenuSlug = "root"

// Module is the top-level grouping unit in navigation.
type Module struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	OrderBy   int       `json:"orderBy"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Menu is an addressable unit of functionality inside a module.
type Menu struct {
	Slug       string   `json:"slug"`
	Name       string   `json:"name"`
	ModuleSlug string   `json:"moduleSlug"`
	Category   Category `json:"category"`
	Path       string   `json:"path"`
	OrderBy    int      `json:"orderBy"`
	ParentSlug string   `json:"parentSlug"`
}

// MenuNode is a menu with its nested children, built from the parent marker.
type MenuNode struct {
	Menu
	Children []MenuNode `json:"children"`
}
