package catalog

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	ListModules(ctx context.Context, activeOnly bool) ([]Module, error)
	GetMenu(ctx context.Context, slug string) (Menu, error)
	MenuExists(ctx context.Context, slug string) (bool, error)
	ListMenusByModule(ctx context.Context, moduleSlug string) ([]Menu, error)
}

// Service exposes the read-only catalog contract consumed by the
// permission aggregator and the navigation endpoints.
type Service struct {
	repo   RepositoryPort
	titler cases.Caser
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, titler: cases.Title(language.English)}
}

// ListModules returns modules sorted by ordering weight.
func (s *Service) ListModules(ctx context.Context, activeOnly bool) ([]Module, error) {
	modules, err := s.repo.ListModules(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	for i := range modules {
		if modules[i].Name == "" {
			modules[i].Name = s.displayName(modules[i].Slug)
		}
	}
	return modules, nil
}

// GetMenu fetches a menu by slug.
func (s *Service) GetMenu(ctx context.Context, slug string) (Menu, error) {
	menu, err := s.repo.GetMenu(ctx, strings.TrimSpace(slug))
	if err != nil {
		return Menu{}, err
	}
	if menu.Name == "" {
		menu.Name = s.displayName(menu.Slug)
	}
	return menu, nil
}

// MenuExists reports whether a menu slug is registered.
func (s *Service) MenuExists(ctx context.Context, slug string) (bool, error) {
	return s.repo.MenuExists(ctx, strings.TrimSpace(slug))
}

// ListMenusByModule returns the menus owned by a module.
func (s *Service) ListMenusByModule(ctx context.Context, moduleSlug string) ([]Menu, error) {
	return s.repo.ListMenusByModule(ctx, strings.TrimSpace(moduleSlug))
}

// MenuTree assembles the nested menu structure for a module from the
// flat parent markers. Menus without a registered parent hang off the
// root sentinel.
func (s *Service) MenuTree(ctx context.Context, moduleSlug string) ([]MenuNode, error) {
	menus, err := s.repo.ListMenusByModule(ctx, moduleSlug)
	if err != nil {
		return nil, err
	}
	return BuildMenuTree(menus), nil
}

// BuildMenuTree groups a flat menu list into a tree keyed on the parent marker.
func BuildMenuTree(menus []Menu) []MenuNode {
	known := make(map[string]struct{}, len(menus))
	for _, m := range menus {
		known[m.Slug] = struct{}{}
	}

	parentOf := func(m Menu) string {
		if m.ParentSlug == "" || m.ParentSlug == RootMenuSlug {
			return RootMenuSlug
		}
		if _, ok := known[m.ParentSlug]; !ok {
			return RootMenuSlug
		}
		return m.ParentSlug
	}
	children, _ := shared.GroupBy(menus, parentOf)

	var build func(parent string) []MenuNode
	build = func(parent string) []MenuNode {
		nodes := make([]MenuNode, 0, len(children[parent]))
		for _, m := range children[parent] {
			nodes = append(nodes, MenuNode{Menu: m, Children: build(m.Slug)})
		}
		return nodes
	}
	return build(RootMenuSlug)
}

func (s *Service) displayName(slug string) string {
	return s.titler.String(strings.ReplaceAll(strings.ReplaceAll(slug, "_", " "), "-", " "))
}
