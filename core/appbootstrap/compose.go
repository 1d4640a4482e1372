package appbootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"worksafety/api"
	"worksafety/config"
	"worksafety/core/auth"
	"worksafety/core/incidents"
	"worksafety/core/metrics"
	"worksafety/core/notify"
	"worksafety/core/perimeters"
	"worksafety/core/planactions"
	"worksafety/core/rbac"
	"worksafety/core/rewards"
	"worksafety/core/sites"
	"worksafety/core/store"
	"worksafety/core/utils"
)

// Runtime is the fully wired application.
type Runtime struct {
	Config    *config.AppConfig
	Logger    *utils.Logger
	DB        *store.DB
	Users     store.UsersStore
	Ledger    *rewards.Ledger
	Labels    *notify.Registry
	Scheduler *rewards.Scheduler
	Server    *api.Server
}

// OpenDB connects to the configured database and brings the schema up to date.
func OpenDB(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (*store.DB, error) {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Compose(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (*Runtime, error) {
	db, err := OpenDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt, err := composeRuntime(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return rt, nil
}

func composeRuntime(cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*Runtime, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}
	policy, err := rbac.BuildPolicy(rbac.DefaultRoles())
	if err != nil {
		return nil, fmt.Errorf("rbac: %w", err)
	}

	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	sitesStore := store.NewSitesStore(db)
	perimetersStore := store.NewPerimetersStore(db)
	rewardsStore := store.NewRewardsStore(db)
	notifications := store.NewNotificationsStore(db)

	dispatcher := notify.NewStoreDispatcher(notifications, m, logger)
	sitesSvc := sites.NewService(cfg.Sites, sitesStore, logger)
	perimetersSvc := perimeters.NewService(perimetersStore, sitesStore, users, logger)
	ledger := rewards.NewLedger(cfg.Rewards, rewardsStore, dispatcher, m, logger)
	incidentsSvc := incidents.NewService(cfg.Incidents, incidents.Deps{
		Store:      store.NewIncidentsStore(db, cfg.Incidents.RefPrefix),
		Users:      users,
		Sites:      sitesSvc,
		Perimeters: perimetersSvc,
		Ledger:     ledger,
		Policy:     policy,
		Dispatcher: dispatcher,
		Metrics:    m,
		Logger:     logger,
	})
	planActionsSvc := planactions.NewService(cfg.Plans, store.NewPlanActionsStore(db, cfg.Plans.RefPrefix), policy, m, logger)

	labels := notify.NewRegistry()
	labels.Register(notify.KindIncident, incidentsSvc.Label)
	labels.Register(notify.KindPlanAction, planActionsSvc.Label)
	labels.Register(notify.KindSite, func(ctx context.Context, id int64) (string, error) {
		st, err := sitesSvc.Get(ctx, id)
		if err != nil {
			return "", err
		}
		return st.Reference + " " + st.Name, nil
	})
	labels.Register(notify.KindPerimeter, perimetersSvc.Label)
	labels.Register(notify.KindBonus, ledger.BonusLabel)

	sessionManager := auth.NewSessionManager(sessions, users, cfg, logger)
	scheduler := rewards.NewScheduler(cfg.Scheduler, ledger, logger)

	server := api.New(cfg, api.ServerDeps{
		Users:          users,
		Sessions:       sessions,
		SessionManager: sessionManager,
		Policy:         policy,
		Sites:          sitesSvc,
		Perimeters:     perimetersSvc,
		Incidents:      incidentsSvc,
		PlanActions:    planActionsSvc,
		Ledger:         ledger,
		Inbox:          notify.NewInbox(notifications, labels),
		Metrics:        m,
		Workers:        []api.BackgroundWorker{scheduler, auth.NewSweeper(sessionManager, logger)},
	}, logger)

	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Users:     users,
		Ledger:    ledger,
		Labels:    labels,
		Scheduler: scheduler,
		Server:    server,
	}, nil
}

func (rt *Runtime) Close() error {
	if rt == nil || rt.DB == nil {
		return nil
	}
	return rt.DB.Close()
}
