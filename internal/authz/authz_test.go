package authz_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssocore/platform/internal/authz"
	"github.com/ssocore/platform/internal/store"
	"github.com/ssocore/platform/internal/store/memory"
)

func TestPermit_AllowsViaDirectPermission(t *testing.T) {
	roles := memory.NewRoleStore()
	tenantID := uuid.New()
	editor, err := roles.Create(context.Background(), store.Role{TenantID: tenantID, Name: "editor", Permissions: []string{"doc:write"}})
	require.NoError(t, err)

	az := authz.NewAuthorizer(roles)
	decision, err := az.Permit(context.Background(), []uuid.UUID{editor.ID}, "doc", "write", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestPermit_DeniesWithoutPermission(t *testing.T) {
	roles := memory.NewRoleStore()
	tenantID := uuid.New()
	viewer, err := roles.Create(context.Background(), store.Role{TenantID: tenantID, Name: "viewer", Permissions: []string{"doc:read"}})
	require.NoError(t, err)

	az := authz.NewAuthorizer(roles)
	decision, err := az.Permit(context.Background(), []uuid.UUID{viewer.ID}, "doc", "write", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestPermit_InheritsPermissionsFromParent(t *testing.T) {
	roles := memory.NewRoleStore()
	tenantID := uuid.New()
	base, err := roles.Create(context.Background(), store.Role{TenantID: tenantID, Name: "base", Permissions: []string{"doc:read"}})
	require.NoError(t, err)
	child, err := roles.Create(context.Background(), store.Role{TenantID: tenantID, Name: "child", ParentRoleID: &base.ID, Permissions: []string{"doc:write"}})
	require.NoError(t, err)

	az := authz.NewAuthorizer(roles)
	decision, err := az.Permit(context.Background(), []uuid.UUID{child.ID}, "doc", "read", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestPermit_WildcardPermissionAllowsAnything(t *testing.T) {
	roles := memory.NewRoleStore()
	tenantID := uuid.New()
	admin, err := roles.Create(context.Background(), store.Role{TenantID: tenantID, Name: "admin", Permissions: []string{"*"}})
	require.NoError(t, err)

	az := authz.NewAuthorizer(roles)
	decision, err := az.Permit(context.Background(), []uuid.UUID{admin.ID}, "anything", "whatever", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestEffectiveRoles_HandlesCycleDefensively(t *testing.T) {
	roles := memory.NewRoleStore()
	tenantID := uuid.New()

	idA := uuid.New()
	idB := uuid.New()
	_, err := roles.Create(context.Background(), store.Role{ID: idA, TenantID: tenantID, Name: "a", ParentRoleID: &idB, Permissions: []string{"x:y"}})
	require.NoError(t, err)
	_, err = roles.Create(context.Background(), store.Role{ID: idB, TenantID: tenantID, Name: "b", ParentRoleID: &idA, Permissions: []string{"y:z"}})
	require.NoError(t, err)

	az := authz.NewAuthorizer(roles)
	effective, err := az.EffectiveRoles(context.Background(), []uuid.UUID{idA})
	require.NoError(t, err)
	assert.Len(t, effective, 2, "cyclic parent chain must terminate, not loop forever")
}

func TestPermit_DeniesOnUnsatisfiedConstraint(t *testing.T) {
	roles := memory.NewRoleStore()
	tenantID := uuid.New()
	scoped, err := roles.Create(context.Background(), store.Role{
		TenantID: tenantID, Name: "scoped", Permissions: []string{"doc:write"},
		Constraints: map[string]any{"department": "engineering"},
	})
	require.NoError(t, err)

	az := authz.NewAuthorizer(roles)
	decision, err := az.Permit(context.Background(), []uuid.UUID{scoped.ID}, "doc", "write", map[string]any{"department": "sales"})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}
