package roles

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, slug string) (Role, error)
	Exists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, role Role) (Role, error)
	Delete(ctx context.Context, slug string) error
	GrantCount(ctx context.Context, slug string) (int64, error)
}

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Get fetches a role by slug.
func (s *Service) Get(ctx context.Context, slug string) (Role, error) {
	return s.repo.Get(ctx, strings.TrimSpace(slug))
}

// Exists reports whether a role slug is registered.
func (s *Service) Exists(ctx context.Context, slug string) (bool, error) {
	return s.repo.Exists(ctx, strings.TrimSpace(slug))
}

// Create registers a new role under a stable slug.
func (s *Service) Create(ctx context.Context, slug, name string) (Role, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !slugPattern.MatchString(slug) {
		return Role{}, fmt.Errorf("%w: slug must be lowercase letters, digits and underscores", httpx.ErrValidation)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, Role{Slug: slug, Name: name, IsActive: true})
}

// Update renames a role or toggles its active flag. Deactivating a role
// does not touch its grants; the aggregator keeps serving them and only
// the warmup job skips the role.
func (s *Service) Update(ctx context.Context, slug, name string, isActive bool) (Role, error) {
	slug = strings.TrimSpace(slug)
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	role, err := s.repo.Get(ctx, slug)
	if err != nil {
		return Role{}, err
	}
	if role.IsSystem && !isActive {
		return Role{}, fmt.Errorf("%w: system role %q cannot be deactivated", httpx.ErrConflict, slug)
	}
	role.Name = name
	role.IsActive = isActive
	return s.repo.Update(ctx, role)
}

// Delete removes a role. System roles are protected, and a role still
// referenced by grants cannot go away underneath its capability sets.
func (s *Service) Delete(ctx context.Context, slug string) error {
	slug = strings.TrimSpace(slug)
	role, err := s.repo.Get(ctx, slug)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system role %q cannot be deleted", httpx.ErrConflict, slug)
	}
	count, err := s.repo.GrantCount(ctx, slug)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: role %q is still referenced by %d grant(s)", httpx.ErrConflict, slug, count)
	}
	return s.repo.Delete(ctx, slug)
}
