package grants

import (
	"context"
	"errors"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the merge engine.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Delete(ctx context.Context, id string) (Grant, error)
}

// RolePort answers whether a role slug references an existing role.
type RolePort interface {
	Exists(ctx context.Context, slug string) (bool, error)
}

// MenuPort answers whether a menu slug references an existing menu.
type MenuPort interface {
	MenuExists(ctx context.Context, slug string) (bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops a role's cached capability snapshot after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, roleSlug string) error
}

// Service is the grant merge engine. Every ApplyGrant call performs
// exactly one upsert, computed against a freshly locked read of the
// existing grant inside the same transaction.
type Service struct {
	repo      RepositoryPort
	roles     RolePort
	menus     MenuPort
	audit     AuditPort
	snapshots Invalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, roles RolePort, menus MenuPort, audit AuditPort, snapshots Invalidator) *Service {
	return &Service{repo: repo, roles: roles, menus: menus, audit: audit, snapshots: snapshots}
}

// ApplyGrant applies one permission-change request with add, replace or
// remove semantics. Remove against a missing grant is a conflict; remove
// reaching an empty set keeps the row, preserving the audit trail.
func (s *Service) ApplyGrant(ctx context.Context, input ApplyGrantInput) (Grant, error) {
	role := strings.TrimSpace(input.Role)
	if role == "" {
		return Grant{}, ErrRoleRequired
	}
	menu := strings.TrimSpace(input.MenuID)
	if menu == "" {
		return Grant{}, ErrMenuRequired
	}
	mode, err := ParseMergeMode(input.ActionType)
	if err != nil {
		return Grant{}, err
	}
	actions, err := NormalizeActions(input.Actions)
	if err != nil {
		return Grant{}, err
	}

	ok, err := s.roles.Exists(ctx, role)
	if err != nil {
		return Grant{}, err
	}
	if !ok {
		return Grant{}, ErrRoleMissing
	}
	ok, err = s.menus.MenuExists(ctx, menu)
	if err != nil {
		return Grant{}, err
	}
	if !ok {
		return Grant{}, ErrMenuMissing
	}

	actor := strings.TrimSpace(input.ActorID)
	if actor == "" {
		actor = shared.SystemActor
	}

	var result Grant
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetForUpdate(ctx, role, menu)
		if err != nil && !errors.Is(err, ErrGrantNotFound) {
			return err
		}
		if errors.Is(err, ErrGrantNotFound) {
			if mode == MergeRemove {
				return ErrRemoveNoGrant
			}
			result, err = tx.Upsert(ctx, Grant{
				RoleSlug:  role,
				MenuSlug:  menu,
				Actions:   actions,
				CreatedBy: actor,
				UpdatedBy: actor,
			})
			return err
		}

		switch mode {
		case MergeAdd:
			existing.Actions = unionActions(existing.Actions, actions)
		case MergeRemove:
			existing.Actions = diffActions(existing.Actions, actions)
		default:
			existing.Actions = actions
		}
		existing.UpdatedBy = actor

		result, err = tx.Upsert(ctx, existing)
		return err
	})
	if err != nil {
		return Grant{}, err
	}

	s.afterMutation(ctx, actor, "grants:apply:"+string(mode), result)
	return result, nil
}

// DeleteGrant removes a grant row. Deleting an unknown id is an explicit
// not-found, not a silent success.
func (s *Service) DeleteGrant(ctx context.Context, id, actorID string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrGrantNotFound
	}
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	actor := strings.TrimSpace(actorID)
	if actor == "" {
		actor = shared.SystemActor
	}
	s.afterMutation(ctx, actor, "grants:delete", removed)
	return nil
}

func (s *Service) afterMutation(ctx context.Context, actor, action string, grant Grant) {
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor,
			Action:   action,
			Entity:   "grant",
			EntityID: grant.ID,
			Meta: map[string]any{
				"role":    grant.RoleSlug,
				"menu":    grant.MenuSlug,
				"actions": grant.Actions,
			},
		})
	}
	if s.snapshots != nil {
		_ = s.snapshots.Invalidate(ctx, grant.RoleSlug)
	}
}
