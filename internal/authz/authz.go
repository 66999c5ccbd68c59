// Package authz implements Authorization (spec §4.10): role resolution
// through parent chains and a permit/deny decision over resource:action
// pairs plus attribute constraints.
//
// Grounded on the teacher's internal/api/middleware/rbac.go, which encodes
// a flat role→weight hierarchy; this generalizes that single fixed
// three-role ladder into the spec's tenant-defined parent_role_id chains
// and permission sets.
package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ssocore/platform/internal/store"
)

// Decision is the spec §4.10 permit() result.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// Authorizer evaluates permit decisions against a RoleStore.
type Authorizer struct {
	roles store.RoleStore
}

func NewAuthorizer(roles store.RoleStore) *Authorizer {
	return &Authorizer{roles: roles}
}

// EffectiveRoles walks the parent_role_id chain for every directly-assigned
// role, defensively detecting cycles, and returns the de-duplicated closure.
func (a *Authorizer) EffectiveRoles(ctx context.Context, roleIDs []uuid.UUID) ([]store.Role, error) {
	seen := make(map[uuid.UUID]bool)
	var out []store.Role

	var walk func(id uuid.UUID) error
	walk = func(id uuid.UUID) error {
		if seen[id] {
			return nil // cycle guard: a role already visited this closure is never re-walked
		}
		seen[id] = true

		role, err := a.roles.FindByID(ctx, id)
		if err != nil {
			return err
		}
		out = append(out, *role)

		if role.ParentRoleID != nil {
			return walk(*role.ParentRoleID)
		}
		return nil
	}

	for _, id := range roleIDs {
		if err := walk(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// unionPermissions collects the de-duplicated permission codes across a
// role set.
func unionPermissions(roles []store.Role) map[string]bool {
	set := make(map[string]bool)
	for _, r := range roles {
		for _, p := range r.Permissions {
			set[p] = true
		}
	}
	return set
}

// Permit evaluates spec §4.10's permit(user, resource, action, attrs).
func (a *Authorizer) Permit(ctx context.Context, roleIDs []uuid.UUID, resource, action string, attrs map[string]any) (Decision, error) {
	roles, err := a.EffectiveRoles(ctx, roleIDs)
	if err != nil {
		return deny("failed to resolve roles"), err
	}

	perms := unionPermissions(roles)
	required := fmt.Sprintf("%s:%s", resource, action)
	if !perms["*"] && !perms[required] {
		return deny(fmt.Sprintf("missing permission %q", required)), nil
	}

	for _, r := range roles {
		if ok, reason := evaluateConstraints(r.Constraints, attrs); !ok {
			return deny(reason), nil
		}
	}

	return allow(), nil
}

// evaluateConstraints checks attribute predicates of the shape
// {"attr_name": expected_value}; a role with no constraints always passes.
func evaluateConstraints(constraints map[string]any, attrs map[string]any) (bool, string) {
	for key, expected := range constraints {
		got, ok := attrs[key]
		if !ok || got != expected {
			return false, fmt.Sprintf("constraint %q not satisfied", key)
		}
	}
	return true, ""
}
