package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/patrickmn/go-cache"

	"worksafety/config"
	"worksafety/core/apperr"
	"worksafety/core/metrics"
	"worksafety/core/notify"
	"worksafety/core/store"
	"worksafety/core/utils"
)

const (
	leaderboardKey = "leaderboard"
	totalsTitle    = "Your points total"
	sourceIncident = "incident"
)

// Window is one bonus rule: profiles active in the last Days days earn Points.
type Window struct {
	Type   store.BonusType
	Days   int
	Points int
}

// RunResult summarizes one bonus evaluation.
type RunResult struct {
	RunID    string          `json:"run_id"`
	Type     store.BonusType `json:"bonus_type"`
	Period   string          `json:"period"`
	Since    time.Time       `json:"since"`
	Eligible int             `json:"eligible"`
	Awarded  int             `json:"awarded"`
	Skipped  int             `json:"skipped"`
}

type Ledger struct {
	cfg        config.RewardsConfig
	store      store.RewardsStore
	dispatcher notify.Dispatcher
	metrics    *metrics.Metrics
	logger     *utils.Logger
	board      *cache.Cache
}

func NewLedger(cfg config.RewardsConfig, rs store.RewardsStore, dispatcher notify.Dispatcher, m *metrics.Metrics, logger *utils.Logger) *Ledger {
	ttl := cfg.LeaderboardCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 10
	}
	return &Ledger{
		cfg:        cfg,
		store:      rs,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		// no janitor: entries expire lazily and the board is flushed on every award
		board: cache.New(ttl, 0),
	}
}

// Window returns the rule configured for kind.
func (l *Ledger) Window(kind store.BonusType) (Window, error) {
	switch kind {
	case store.BonusWeekly:
		return Window{Type: kind, Days: l.cfg.WeeklyWindowDays, Points: l.cfg.WeeklyPoints}, nil
	case store.BonusMonthly:
		return Window{Type: kind, Days: l.cfg.MonthlyWindowDays, Points: l.cfg.MonthlyPoints}, nil
	case store.BonusQuarterly:
		return Window{Type: kind, Days: l.cfg.QuarterlyWindowDays, Points: l.cfg.QuarterlyPoints}, nil
	}
	return Window{}, apperr.Invalid("bonus_type", "rewards.bonusTypeInvalid", "unknown bonus type %q", kind)
}

// PeriodKey names the calendar period a bonus run belongs to: ISO week, month or quarter.
func PeriodKey(kind store.BonusType, now time.Time) string {
	now = now.UTC()
	switch kind {
	case store.BonusWeekly:
		y, w := now.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case store.BonusMonthly:
		return now.Format("2006-01")
	case store.BonusQuarterly:
		return fmt.Sprintf("%04d-Q%d", now.Year(), (int(now.Month())-1)/3+1)
	}
	return now.Format("2006-01-02")
}

// RecordIncident credits a reported incident to userID. q may be the creation
// transaction so the credit commits or rolls back with the incident.
func (l *Ledger) RecordIncident(ctx context.Context, q store.Querier, userID int64, at time.Time) (int, error) {
	at = at.UTC()
	total, err := l.store.AddPoints(ctx, q, userID, l.cfg.IncidentPoints, &at)
	if err != nil {
		return 0, fmt.Errorf("record incident for user %d: %w", userID, err)
	}
	return total, nil
}

// IncidentHook credits the creator inside the incident creation transaction,
// dated at the time of the credit.
func (l *Ledger) IncidentHook() store.TxHook {
	return func(ctx context.Context, tx *store.Tx, inc *store.Incident) error {
		if inc.CreatedBy == nil {
			return nil
		}
		_, err := l.RecordIncident(ctx, tx, *inc.CreatedBy, utils.NowUTC())
		return err
	}
}

// Credited is called after the creation transaction committed.
func (l *Ledger) Credited(ctx context.Context, userID, incidentID int64) {
	l.metrics.Points(sourceIncident, l.cfg.IncidentPoints)
	l.board.Flush()
	if !l.cfg.NotifyTotals {
		return
	}
	p, err := l.store.GetProfile(ctx, userID)
	if err != nil {
		l.logger.Warnf("rewards: profile for user %d: %v", userID, err)
		return
	}
	l.announce(ctx, userID, p.TotalPoints, notify.RefTo(notify.KindIncident, incidentID))
}

func (l *Ledger) announce(ctx context.Context, userID int64, total int, ref *notify.Ref) {
	if l.dispatcher == nil {
		return
	}
	err := l.dispatcher.Notify(ctx, notify.Notice{
		UserID:  userID,
		Title:   totalsTitle,
		Message: fmt.Sprintf("You now have %d points.", total),
		Related: ref,
	})
	if err != nil {
		l.logger.Warnf("rewards: notify user %d: %v", userID, err)
	}
}

// EvaluateBonus awards kind to every profile whose last incident falls inside the
// window ending at now. Windows are evaluated independently, so a recently active
// user can collect all three; each is paid at most once per calendar period.
func (l *Ledger) EvaluateBonus(ctx context.Context, kind store.BonusType, now time.Time) (*RunResult, error) {
	w, err := l.Window(kind)
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	res := &RunResult{
		RunID:  uuid.Must(uuid.NewV4()).String(),
		Type:   kind,
		Period: PeriodKey(kind, now),
		Since:  now.AddDate(0, 0, -w.Days),
	}
	profiles, err := l.store.ProfilesActiveSince(ctx, res.Since)
	if err != nil {
		return nil, fmt.Errorf("%s bonus: %w", kind, err)
	}
	res.Eligible = len(profiles)
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		b := &store.Bonus{UserID: p.UserID, Type: kind, Points: w.Points, Period: res.Period, RunID: res.RunID, AwardedAt: now}
		total, awarded, err := l.store.AwardBonus(ctx, b)
		if err != nil {
			return res, fmt.Errorf("%s bonus for user %d: %w", kind, p.UserID, err)
		}
		if !awarded {
			res.Skipped++
			continue
		}
		res.Awarded++
		l.metrics.Bonus(string(kind))
		l.metrics.Points(string(kind), w.Points)
		if l.cfg.NotifyTotals {
			l.announce(ctx, p.UserID, total, notify.RefTo(notify.KindBonus, b.ID))
		}
	}
	if res.Awarded > 0 {
		l.board.Flush()
	}
	l.logger.Printf("rewards: %s bonus run=%s period=%s eligible=%d awarded=%d skipped=%d",
		kind, res.RunID, res.Period, res.Eligible, res.Awarded, res.Skipped)
	return res, nil
}

// BonusLabel names an awarded bonus, e.g. "weekly bonus +6 (2026-W41)".
func (l *Ledger) BonusLabel(ctx context.Context, id int64) (string, error) {
	b, err := l.store.GetBonus(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s bonus +%d (%s)", b.Type, b.Points, b.Period), nil
}

// Leaderboard returns the top profiles by points, served from a short-lived cache.
func (l *Ledger) Leaderboard(ctx context.Context) ([]store.LeaderboardEntry, error) {
	if v, ok := l.board.Get(leaderboardKey); ok {
		return v.([]store.LeaderboardEntry), nil
	}
	entries, err := l.store.Leaderboard(ctx, l.cfg.LeaderboardSize)
	if err != nil {
		return nil, err
	}
	l.board.SetDefault(leaderboardKey, entries)
	return entries, nil
}

// Profile returns the user's ledger; users without activity get an empty one.
func (l *Ledger) Profile(ctx context.Context, userID int64) (*store.UserProfile, []store.Bonus, error) {
	p, err := l.store.GetProfile(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		sites, serr := l.store.AllowedSites(ctx, userID)
		if serr != nil {
			return nil, nil, serr
		}
		p, err = &store.UserProfile{UserID: userID, AllowedSiteIDs: sites}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	bonuses, err := l.store.ListBonuses(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return p, bonuses, nil
}

func (l *Ledger) AllowedSites(ctx context.Context, userID int64) ([]int64, error) {
	return l.store.AllowedSites(ctx, userID)
}

func (l *Ledger) AllowSite(ctx context.Context, userID, siteID int64) error {
	return l.store.AddAllowedSite(ctx, userID, siteID)
}

func (l *Ledger) DisallowSite(ctx context.Context, userID, siteID int64) error {
	return l.store.RemoveAllowedSite(ctx, userID, siteID)
}
