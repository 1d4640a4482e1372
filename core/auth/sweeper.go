package auth

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"worksafety/core/utils"
)

const sweepSpec = "@every 10m"

// Sweeper periodically drops expired sessions.
type Sweeper struct {
	manager *SessionManager
	logger  *utils.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewSweeper(manager *SessionManager, logger *utils.Logger) *Sweeper {
	return &Sweeper{manager: manager, logger: logger}
}

func (s *Sweeper) StartWithContext(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(sweepSpec, func() { s.sweep(runCtx) }); err != nil {
		cancel()
		s.logger.Errorf("session sweeper: %v", err)
		return
	}
	s.cron, s.cancel = c, cancel
	c.Start()
}

func (s *Sweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := s.manager.Purge(ctx)
	if err != nil {
		s.logger.Errorf("session sweeper: %v", err)
		return
	}
	if n > 0 {
		s.logger.Printf("session sweeper: removed %d expired sessions", n)
	}
}

func (s *Sweeper) StopWithContext(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	cancel()
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
