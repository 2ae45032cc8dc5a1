package rbac_test

import (
	"testing"

	"github.com/hugh/go-equip/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredRole_Known(t *testing.T) {
	role, err := rbac.RequiredRole(rbac.PermManageInvitations)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleManager, role)

	role, err = rbac.RequiredRole(rbac.PermEditOrganization)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdministrator, role)
}

func TestRequiredRole_Table(t *testing.T) {
	tests := []struct {
		perm rbac.Permission
		want rbac.Role
	}{
		{rbac.PermViewEquipment, rbac.RoleCustomer},
		{rbac.PermViewOrganization, rbac.RoleUser},
		{rbac.PermViewDemos, rbac.RoleEstimator},
		{rbac.PermScheduleDemos, rbac.RoleDispatcher},
		{rbac.PermCreateLog, rbac.RoleTechnician},
		{rbac.PermResolveAlert, rbac.RoleSupervisor},
		{rbac.PermDeleteEquipment, rbac.RoleManager},
		{rbac.PermCreateUser, rbac.RoleAdministrator},
		{rbac.PermEditUser, rbac.RoleAdministrator},
		{rbac.PermDeleteUser, rbac.RoleAdministrator},
		{rbac.PermViewBilling, rbac.RoleAdministrator},
		{rbac.PermManagePlans, rbac.RoleRoot},
		{rbac.PermDeleteOrganization, rbac.RoleRoot},
	}
	for _, tt := range tests {
		t.Run(string(tt.perm), func(t *testing.T) {
			got, err := rbac.RequiredRole(tt.perm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequiredRole_Unknown(t *testing.T) {
	_, err := rbac.RequiredRole("editOrganisation")
	require.ErrorIs(t, err, rbac.ErrUnknownPermission)
	assert.Contains(t, err.Error(), "editOrganisation")
}

func TestPermissions_AllMapToValidRoles(t *testing.T) {
	perms := rbac.Permissions()
	require.NotEmpty(t, perms)
	for _, p := range perms {
		role, err := rbac.RequiredRole(p)
		require.NoError(t, err)
		assert.True(t, role.Valid(), "permission %s maps to invalid role %s", p, role)
	}
}

func TestCan(t *testing.T) {
	ok, err := rbac.Can(rbac.RoleManager, rbac.PermManageInvitations)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rbac.Can(rbac.RoleTechnician, rbac.PermManageInvitations)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = rbac.Can(rbac.RoleRoot, "doEverything")
	assert.ErrorIs(t, err, rbac.ErrUnknownPermission)
}
