package routegroups

import (
	"github.com/go-chi/chi/v5"

	"worksafety/api/handlers"
	"worksafety/core/rbac"
)

func RegisterRewards(apiRouter chi.Router, g Guards, rewards *handlers.RewardsHandler) {
	apiRouter.Route("/rewards", func(rewardsRouter chi.Router) {
		rewardsRouter.MethodFunc("GET", "/leaderboard", g.SessionPerm(rbac.PermRewardsView, rewards.Leaderboard))
		rewardsRouter.MethodFunc("GET", "/me", g.SessionPerm(rbac.PermRewardsView, rewards.Me))
		rewardsRouter.MethodFunc("GET", "/profiles/{user_id:[0-9]+}/sites", g.SessionPerm(rbac.PermRewardsManage, rewards.ListSites))
		rewardsRouter.MethodFunc("POST", "/profiles/{user_id:[0-9]+}/sites", g.SessionPerm(rbac.PermRewardsManage, rewards.AddSite))
		rewardsRouter.MethodFunc("DELETE", "/profiles/{user_id:[0-9]+}/sites/{site_id:[0-9]+}", g.SessionPerm(rbac.PermRewardsManage, rewards.RemoveSite))
		rewardsRouter.MethodFunc("POST", "/bonuses/{type}/run", g.SessionPerm(rbac.PermRewardsManage, rewards.RunBonus))
	})
}

func RegisterNotifications(apiRouter chi.Router, g Guards, notifications *handlers.NotificationsHandler) {
	apiRouter.Route("/notifications", func(notificationsRouter chi.Router) {
		notificationsRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermNotificationsView, notifications.List))
		notificationsRouter.MethodFunc("POST", "/read", g.SessionPerm(rbac.PermNotificationsView, notifications.MarkAllRead))
		notificationsRouter.MethodFunc("POST", "/{id:[0-9]+}/read", g.SessionPerm(rbac.PermNotificationsView, notifications.MarkRead))
	})
}

func RegisterAccounts(apiRouter chi.Router, g Guards, accounts *handlers.AccountsHandler) {
	apiRouter.Route("/users", func(usersRouter chi.Router) {
		usersRouter.MethodFunc("GET", "/", g.SessionPerm(rbac.PermUsersManage, accounts.List))
		usersRouter.MethodFunc("POST", "/", g.SessionPerm(rbac.PermUsersManage, accounts.Create))
		usersRouter.MethodFunc("DELETE", "/{user_id:[0-9]+}", g.SessionPerm(rbac.PermUsersManage, accounts.Delete))
	})
}
