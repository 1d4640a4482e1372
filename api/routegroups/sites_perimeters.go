package routegroups

import (
	"github.com/go-chi/chi/v5"

	"worksafety/api/handlers"
	"worksafety/core/rbac"
)

func RegisterSites(apiRouter chi.Router, g Guards, sites *handlers.SitesHandler) {
	apiRouter.Route("/companies", func(companiesRouter chi.Router) {
		companiesRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermSitesView, sites.ListCompanies))
		companiesRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermSitesManage, sites.CreateCompany))
		companiesRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.SessionPerm(rbac.PermSitesManage, sites.DeleteCompany))
	})

	apiRouter.Route("/sites", func(sitesRouter chi.Router) {
		sitesRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermSitesView, sites.List))
		sitesRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermSitesManage, sites.Create))
		sitesRouter.MethodFunc("GET", "/regions", g.SessionPerm(rbac.PermSitesView, sites.Regions))
		sitesRouter.MethodFunc("GET", "/{id:[0-9]+}", g.SessionPerm(rbac.PermSitesView, sites.Get))
		sitesRouter.MethodFunc("PUT", "/{id:[0-9]+}", g.SessionPerm(rbac.PermSitesManage, sites.Update))
		sitesRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.SessionPerm(rbac.PermSitesManage, sites.Delete))
		sitesRouter.MethodFunc("GET", "/{id:[0-9]+}/locations", g.SessionPerm(rbac.PermSitesView, sites.ListLocations))
		sitesRouter.MethodFunc("POST", "/{id:[0-9]+}/locations", g.SessionPerm(rbac.PermSitesManage, sites.CreateLocation))
		sitesRouter.MethodFunc("DELETE", "/{id:[0-9]+}/locations/{location_id:[0-9]+}", g.SessionPerm(rbac.PermSitesManage, sites.DeleteLocation))
	})
}

func RegisterPerimeters(apiRouter chi.Router, g Guards, perimeters *handlers.PerimetersHandler) {
	apiRouter.Route("/perimeters", func(perimetersRouter chi.Router) {
		perimetersRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermPerimetersView, perimeters.List))
		perimetersRouter.MethodFunc("GET", "/tree", g.SessionPerm(rbac.PermPerimetersView, perimeters.Tree))
		perimetersRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermPerimetersManage, perimeters.Create))
		perimetersRouter.MethodFunc("GET", "/{id:[0-9]+}", g.SessionPerm(rbac.PermPerimetersView, perimeters.Get))
		perimetersRouter.MethodFunc("PUT", "/{id:[0-9]+}", g.SessionPerm(rbac.PermPerimetersManage, perimeters.Update))
		perimetersRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.SessionPerm(rbac.PermPerimetersManage, perimeters.Delete))
		perimetersRouter.MethodFunc("GET", "/{id:[0-9]+}/users", g.SessionPerm(rbac.PermPerimetersView, perimeters.ListUsers))
		perimetersRouter.MethodFunc("PUT", "/{id:[0-9]+}/users/{user_id:[0-9]+}", g.SessionPerm(rbac.PermPerimetersManage, perimeters.PutUser))
		perimetersRouter.MethodFunc("DELETE", "/{id:[0-9]+}/users/{user_id:[0-9]+}", g.SessionPerm(rbac.PermPerimetersManage, perimeters.DeleteUser))
	})

	apiRouter.Route("/perimeter-categories", func(categoriesRouter chi.Router) {
		categoriesRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermPerimetersView, perimeters.ListCategories))
		categoriesRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermPerimetersManage, perimeters.CreateCategory))
		categoriesRouter.MethodFunc("DELETE", "/{id:[0-9]+}", g.SessionPerm(rbac.PermPerimetersManage, perimeters.DeleteCategory))
	})
}
