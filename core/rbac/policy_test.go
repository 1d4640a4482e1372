package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRolesCapabilities(t *testing.T) {
	p := NewPolicy(DefaultRoles())

	require.True(t, p.Allowed([]string{RoleAdmin}, PermIncidentsAssign))
	require.True(t, p.Allowed([]string{RoleAdmin}, Permission("anything.at.all")))

	require.True(t, p.Allowed([]string{RoleSeller}, PermIncidentsCreate))
	require.False(t, p.Allowed([]string{RoleSeller}, PermIncidentsStatus))

	require.True(t, p.Allowed([]string{RoleTechnician}, PermIncidentsStatus))
	require.True(t, p.Allowed([]string{RoleTechnician}, PermIncidentsView))
	require.False(t, p.Allowed([]string{RoleTechnician}, PermIncidentsAssign))
	require.False(t, p.Allowed([]string{RoleTechnician}, PermPlanActionsStatus))

	require.True(t, p.Allowed([]string{RoleManager}, PermIncidentsAssign))
	require.True(t, p.Allowed([]string{RoleManager}, PermIncidentsStatus))
	require.True(t, p.Allowed([]string{RoleManager}, PermPlanActionsStatus))
	require.False(t, p.Allowed([]string{RoleManager}, PermSitesManage))
}

func TestAllowedWithMultipleRoles(t *testing.T) {
	p := NewPolicy(DefaultRoles())
	require.True(t, p.Allowed([]string{"unknown", RoleManager}, PermIncidentsDelete))
	require.False(t, p.Allowed(nil, PermIncidentsView))
	require.True(t, p.AllowedAny([]string{RoleDriver}, PermSitesManage, PermSitesView))
}

func TestNilPolicyDenies(t *testing.T) {
	var p *Policy
	require.False(t, p.Allowed([]string{RoleAdmin}, PermIncidentsView))
}

func TestKnownRole(t *testing.T) {
	require.True(t, KnownRole(RoleDriver))
	require.False(t, KnownRole("reporter"))
}
