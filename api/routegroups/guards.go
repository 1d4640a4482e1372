package routegroups

import (
	"net/http"

	"worksafety/core/rbac"
)

// Guards wraps route handlers with the session check and a capability check.
type Guards struct {
	WithSession          func(http.HandlerFunc) http.HandlerFunc
	RequirePermission    func(rbac.Permission) func(http.HandlerFunc) http.HandlerFunc
	RequireAnyPermission func(...rbac.Permission) func(http.HandlerFunc) http.HandlerFunc
}

func (g Guards) SessionPerm(perm rbac.Permission, h http.HandlerFunc) http.HandlerFunc {
	return g.WithSession(g.RequirePermission(perm)(h))
}

func (g Guards) SessionAnyPerm(perms []rbac.Permission, h http.HandlerFunc) http.HandlerFunc {
	return g.WithSession(g.RequireAnyPermission(perms...)(h))
}
