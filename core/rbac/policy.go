package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermIncidentsView      Permission = "incidents.view"
	PermIncidentsViewAll   Permission = "incidents.view.all"
	PermIncidentsCreate    Permission = "incidents.create"
	PermIncidentsEdit      Permission = "incidents.edit"
	PermIncidentsStatus    Permission = "incidents.status.change"
	PermIncidentsAssign    Permission = "incidents.assign"
	PermIncidentsDelete    Permission = "incidents.delete"
	PermPlanActionsView    Permission = "planactions.view"
	PermPlanActionsViewAll Permission = "planactions.view.all"
	PermPlanActionsCreate  Permission = "planactions.create"
	PermPlanActionsStatus  Permission = "planactions.status.change"
	PermPlanActionsDelete  Permission = "planactions.delete"
	PermSitesView          Permission = "sites.view"
	PermSitesManage        Permission = "sites.manage"
	PermPerimetersView     Permission = "perimeters.view"
	PermPerimetersManage   Permission = "perimeters.manage"
	PermRewardsView        Permission = "rewards.view"
	PermRewardsManage      Permission = "rewards.manage"
	PermNotificationsView  Permission = "notifications.view"
	PermUsersManage        Permission = "users.manage"
)

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTechnician = "technician"
	RoleDriver     = "driver"
	RoleSeller     = "seller"
	roleReporter   = "reporter"
	wildcard       = "*"
)

const policyModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.act == "*" || r.act == p.act)
`

// Role is a named bundle of permissions, optionally inheriting other roles.
type Role struct {
	Name        string
	Permissions []Permission
	Inherits    []string
}

func DefaultRoles() []Role {
	return []Role{
		{Name: RoleAdmin, Permissions: []Permission{wildcard}},
		{Name: roleReporter, Permissions: []Permission{
			PermIncidentsView, PermIncidentsCreate, PermSitesView, PermRewardsView, PermNotificationsView,
		}},
		{Name: RoleSeller, Inherits: []string{roleReporter}},
		{Name: RoleDriver, Inherits: []string{roleReporter}},
		{Name: RoleTechnician, Inherits: []string{roleReporter}, Permissions: []Permission{
			PermIncidentsStatus, PermPlanActionsView, PermPerimetersView,
		}},
		{Name: RoleManager, Inherits: []string{RoleTechnician}, Permissions: []Permission{
			PermIncidentsViewAll, PermIncidentsEdit, PermIncidentsAssign, PermIncidentsDelete,
			PermPlanActionsViewAll, PermPlanActionsCreate, PermPlanActionsStatus, PermPlanActionsDelete,
		}},
	}
}

// KnownRole reports whether name is a role users may be given directly.
func KnownRole(name string) bool {
	switch name {
	case RoleAdmin, RoleManager, RoleTechnician, RoleDriver, RoleSeller:
		return true
	}
	return false
}

type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

func NewPolicy(roles []Role) *Policy {
	p, err := BuildPolicy(roles)
	if err != nil {
		panic(err)
	}
	return p
}

func BuildPolicy(roles []Role) (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	for _, role := range roles {
		for _, perm := range role.Permissions {
			if _, err := e.AddPolicy(role.Name, string(perm)); err != nil {
				return nil, fmt.Errorf("rbac policy %s/%s: %w", role.Name, perm, err)
			}
		}
		for _, parent := range role.Inherits {
			if _, err := e.AddGroupingPolicy(role.Name, parent); err != nil {
				return nil, fmt.Errorf("rbac grouping %s<%s: %w", role.Name, parent, err)
			}
		}
	}
	return &Policy{enforcer: e}, nil
}

// Allowed answers whether any of roles holds perm.
func (p *Policy) Allowed(roles []string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}

func (p *Policy) AllowedAny(roles []string, perms ...Permission) bool {
	for _, perm := range perms {
		if p.Allowed(roles, perm) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether roles include the admin role.
func IsAdmin(roles []string) bool {
	for _, r := range roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}
