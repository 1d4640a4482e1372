package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"worksafety/api/routegroups"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.securityHeadersMiddleware)

	r.MethodFunc("GET", "/healthz", s.healthz)
	if s.metrics != nil {
		r.Method("GET", "/metrics", s.metrics.Handler())
	}

	h := s.newRouteHandlers()
	g := routegroups.Guards{
		WithSession:          s.withSession,
		RequirePermission:    s.requirePermission,
		RequireAnyPermission: s.requireAnyPermission,
	}
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(s.jsonMiddleware)
		apiRouter.MethodFunc("POST", "/auth/login", s.rateLimitMiddleware(h.auth.Login))
		apiRouter.MethodFunc("POST", "/auth/logout", s.withSession(h.auth.Logout))
		apiRouter.MethodFunc("GET", "/auth/me", s.withSession(h.auth.Me))

		routegroups.RegisterSites(apiRouter, g, h.sites)
		routegroups.RegisterPerimeters(apiRouter, g, h.perimeters)
		routegroups.RegisterIncidents(apiRouter, g, h.incidents, h.planActions)
		routegroups.RegisterRewards(apiRouter, g, h.rewards)
		routegroups.RegisterNotifications(apiRouter, g, h.notifications)
		routegroups.RegisterAccounts(apiRouter, g, h.accounts)
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
