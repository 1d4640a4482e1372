package routegroups

import (
	"github.com/go-chi/chi/v5"

	"worksafety/api/handlers"
	"worksafety/core/rbac"
)

func RegisterIncidents(apiRouter chi.Router, g Guards, incidents *handlers.IncidentsHandler, plans *handlers.PlanActionsHandler) {
	apiRouter.Route("/incidents", func(incidentsRouter chi.Router) {
		incidentsRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermIncidentsView, incidents.List))
		incidentsRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermIncidentsCreate, incidents.Create))
		incidentsRouter.MethodFunc("GET", "/dashboard", g.SessionPerm(rbac.PermIncidentsView, incidents.Dashboard))
		incidentsRouter.MethodFunc("GET", "/{id:[0-9]+}", g.SessionPerm(rbac.PermIncidentsView, incidents.Get))
		incidentsRouter.MethodFunc("PUT", "/{id:[0-9]+}", g.SessionAnyPerm([]rbac.Permission{rbac.PermIncidentsCreate, rbac.PermIncidentsEdit}, incidents.Update))
		incidentsRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.SessionPerm(rbac.PermIncidentsDelete, incidents.Delete))
		incidentsRouter.MethodFunc("POST", "/{id:[0-9]+}/restore", g.SessionPerm(rbac.PermIncidentsDelete, incidents.Restore))
		incidentsRouter.MethodFunc("POST", "/{id:[0-9]+}/status", g.SessionPerm(rbac.PermIncidentsStatus, incidents.AdvanceStatus))
		incidentsRouter.MethodFunc("POST", "/{id:[0-9]+}/assign", g.SessionPerm(rbac.PermIncidentsAssign, incidents.Assign))
	})

	apiRouter.Route("/planactions", func(plansRouter chi.Router) {
		plansRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermPlanActionsView, plans.List))
		plansRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermPlanActionsCreate, plans.Create))
		plansRouter.MethodFunc("GET", "/{id:[0-9]+}", g.SessionPerm(rbac.PermPlanActionsView, plans.Get))
		plansRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.SessionPerm(rbac.PermPlanActionsDelete, plans.Delete))
		plansRouter.MethodFunc("POST", "/{id:[0-9]+}/status", g.SessionPerm(rbac.PermPlanActionsStatus, plans.AdvanceStatus))
	})
}
