package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

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

const shutdownTimeout = 10 * time.Second

// BackgroundWorker is a component started alongside the HTTP listener.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Users          store.UsersStore
	Sessions       store.SessionStore
	SessionManager *auth.SessionManager
	Policy         *rbac.Policy
	Sites          *sites.Service
	Perimeters     *perimeters.Service
	Incidents      *incidents.Service
	PlanActions    *planactions.Service
	Ledger         *rewards.Ledger
	Inbox          *notify.Inbox
	Metrics        *metrics.Metrics
	Workers        []BackgroundWorker
}

type Server struct {
	cfg             *config.AppConfig
	logger          *utils.Logger
	policy          *rbac.Policy
	users           store.UsersStore
	sessions        store.SessionStore
	sessionManager  *auth.SessionManager
	sitesSvc        *sites.Service
	perimetersSvc   *perimeters.Service
	incidentsSvc    *incidents.Service
	planActionsSvc  *planactions.Service
	ledger          *rewards.Ledger
	inbox           *notify.Inbox
	metrics         *metrics.Metrics
	workers         []BackgroundWorker
	activityTracker *sessionActivity
	loginLimiter    *requestLimiter
	router          chi.Router
}

func New(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	burst := 5
	if cfg != nil && cfg.Security.LoginBurst > 0 {
		burst = cfg.Security.LoginBurst
	}
	s := &Server{
		cfg:             cfg,
		logger:          logger,
		policy:          deps.Policy,
		users:           deps.Users,
		sessions:        deps.Sessions,
		sessionManager:  deps.SessionManager,
		sitesSvc:        deps.Sites,
		perimetersSvc:   deps.Perimeters,
		incidentsSvc:    deps.Incidents,
		planActionsSvc:  deps.PlanActions,
		ledger:          deps.Ledger,
		inbox:           deps.Inbox,
		metrics:         deps.Metrics,
		workers:         deps.Workers,
		activityTracker: newSessionActivity(),
		loginLimiter:    newLimiter(burst, time.Minute),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP and the background workers until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		w.StartWithContext(gctx)
	}
	g.Go(func() error {
		s.logger.Printf("listening on %s tls=%v", s.cfg.ListenAddr, s.cfg.TLSEnabled)
		var err error
		if s.cfg.TLSEnabled {
			err = srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
		for _, w := range s.workers {
			if err := w.StopWithContext(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
