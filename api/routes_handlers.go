package api

import "worksafety/api/handlers"

type routeHandlers struct {
	auth          *handlers.AuthHandler
	accounts      *handlers.AccountsHandler
	sites         *handlers.SitesHandler
	perimeters    *handlers.PerimetersHandler
	incidents     *handlers.IncidentsHandler
	planActions   *handlers.PlanActionsHandler
	rewards       *handlers.RewardsHandler
	notifications *handlers.NotificationsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:          handlers.NewAuthHandler(s.cfg, s.users, s.sessionManager, s.policy, s.logger),
		accounts:      handlers.NewAccountsHandler(s.users, s.logger),
		sites:         handlers.NewSitesHandler(s.sitesSvc, s.logger),
		perimeters:    handlers.NewPerimetersHandler(s.perimetersSvc, s.logger),
		incidents:     handlers.NewIncidentsHandler(s.incidentsSvc, s.logger),
		planActions:   handlers.NewPlanActionsHandler(s.planActionsSvc, s.logger),
		rewards:       handlers.NewRewardsHandler(s.ledger, s.sitesSvc, s.users, s.logger),
		notifications: handlers.NewNotificationsHandler(s.inbox, s.logger),
	}
}
