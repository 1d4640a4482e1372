package rewards

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"worksafety/config"
	"worksafety/core/store"
	"worksafety/core/utils"
)

// Evaluator runs one bonus evaluation.
type Evaluator interface {
	EvaluateBonus(ctx context.Context, kind store.BonusType, now time.Time) (*RunResult, error)
}

// Scheduler triggers the weekly, monthly and quarterly bonus runs on cron specs.
type Scheduler struct {
	cfg    config.SchedulerConfig
	eval   Evaluator
	logger *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(cfg config.SchedulerConfig, eval Evaluator, logger *utils.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, eval: eval, logger: logger}
}

func (s *Scheduler) specs() map[store.BonusType]string {
	return map[store.BonusType]string{
		store.BonusWeekly:    s.cfg.WeeklySpec,
		store.BonusMonthly:   s.cfg.MonthlySpec,
		store.BonusQuarterly: s.cfg.QuarterlySpec,
	}
}

func (s *Scheduler) StartWithContext(ctx context.Context) {
	if s == nil || s.eval == nil || !s.cfg.Enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	loc := time.UTC
	if s.cfg.Timezone != "" {
		if l, err := time.LoadLocation(s.cfg.Timezone); err == nil {
			loc = l
		} else {
			s.logger.Warnf("rewards scheduler: timezone %q: %v, using UTC", s.cfg.Timezone, err)
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(loc))
	for _, kind := range []store.BonusType{store.BonusWeekly, store.BonusMonthly, store.BonusQuarterly} {
		spec := s.specs()[kind]
		if spec == "" {
			continue
		}
		kind := kind
		if _, err := c.AddFunc(spec, func() { s.fire(runCtx, kind) }); err != nil {
			s.logger.Errorf("rewards scheduler: %s spec %q: %v", kind, spec, err)
		}
	}
	c.Start()
	s.cron = c
	s.cancel = cancel
	s.running = true
	s.logger.Printf("rewards scheduler started tz=%s", loc)
}

func (s *Scheduler) fire(ctx context.Context, kind store.BonusType) {
	if ctx.Err() != nil {
		return
	}
	if err := s.RunOnce(ctx, kind, time.Now().UTC()); err != nil {
		s.logger.Errorf("rewards scheduler: %s run: %v", kind, err)
	}
}

func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil || !s.cfg.Enabled {
		return nil
	}
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	wasRunning := s.running
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()
	if !wasRunning || c == nil {
		return nil
	}
	cancel()
	// Stop returns a context that is done once running jobs have returned.
	jobsDone := c.Stop()
	select {
	case <-jobsDone.Done():
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce evaluates kind immediately.
func (s *Scheduler) RunOnce(ctx context.Context, kind store.BonusType, now time.Time) error {
	if s == nil || s.eval == nil {
		return nil
	}
	if _, err := s.eval.EvaluateBonus(ctx, kind, now); err != nil {
		return fmt.Errorf("%s bonus: %w", kind, err)
	}
	return nil
}
