package rewards

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"worksafety/config"
	"worksafety/core/notify"
	"worksafety/core/store"
	"worksafety/core/utils"
)

type ledgerFixture struct {
	db      *store.DB
	ledger  *Ledger
	rewards store.RewardsStore
	notes   store.NotificationsStore
	users   store.UsersStore
}

func testRewardsConfig() config.RewardsConfig {
	return config.RewardsConfig{
		IncidentPoints:      2,
		WeeklyPoints:        6,
		MonthlyPoints:       3,
		QuarterlyPoints:     1,
		WeeklyWindowDays:    7,
		MonthlyWindowDays:   30,
		QuarterlyWindowDays: 90,
		LeaderboardSize:     10,
		LeaderboardCacheTTL: time.Hour,
		NotifyTotals:        true,
	}
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	ctx := context.Background()
	logger := utils.NewNopLogger()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "rewards.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.ApplyMigrations(ctx, db, logger))
	f := &ledgerFixture{
		db:      db,
		rewards: store.NewRewardsStore(db),
		notes:   store.NewNotificationsStore(db),
		users:   store.NewUsersStore(db),
	}
	f.ledger = NewLedger(testRewardsConfig(), f.rewards, notify.NewStoreDispatcher(f.notes, nil, logger), nil, logger)
	return f
}

func (f *ledgerFixture) user(t *testing.T, email string) *store.User {
	t.Helper()
	u := &store.User{Email: email, FirstName: email, Role: "seller", IsInternal: true, Active: true}
	_, err := f.users.Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func (f *ledgerFixture) activeAt(t *testing.T, u *store.User, at time.Time) {
	t.Helper()
	_, err := f.ledger.RecordIncident(context.Background(), nil, u.ID, at)
	require.NoError(t, err)
}

func TestPeriodKey(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	require.Equal(t, "2026-W42", PeriodKey(store.BonusWeekly, now))
	require.Equal(t, "2026-10", PeriodKey(store.BonusMonthly, now))
	require.Equal(t, "2026-Q4", PeriodKey(store.BonusQuarterly, now))
	newYear := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "2026-W53", PeriodKey(store.BonusWeekly, newYear))
	require.Equal(t, "2027-Q1", PeriodKey(store.BonusQuarterly, newYear))
}

func TestIncidentHookCreditsCreatorInTransaction(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	u := f.user(t, "reporter@example.com")
	incidents := store.NewIncidentsStore(f.db, "INC")
	inc := &store.Incident{Name: "Spill", Type: store.IncidentTypeObservation, ConsequenceOSE: "slip", SolutionOSE: "mop", CreatedBy: &u.ID}
	_, err := incidents.CreateIncident(ctx, inc, f.ledger.IncidentHook())
	require.NoError(t, err)
	f.ledger.Credited(ctx, u.ID, inc.ID)

	p, bonuses, err := f.ledger.Profile(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, bonuses)
	require.Equal(t, 2, p.TotalPoints)
	require.NotNil(t, p.LastIncidentDate)
	require.WithinDuration(t, inc.ReportDate, *p.LastIncidentDate, time.Second)

	items, err := f.notes.ListNotifications(ctx, u.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Your points total", items[0].Title)
	require.Equal(t, "You now have 2 points.", items[0].Message)
	require.Equal(t, "incident", items[0].RelatedKind)
}

func TestProfileWithoutActivityIsEmpty(t *testing.T) {
	f := newLedgerFixture(t)
	u := f.user(t, "idle@example.com")
	p, bonuses, err := f.ledger.Profile(context.Background(), u.ID)
	require.NoError(t, err)
	require.Zero(t, p.TotalPoints)
	require.Empty(t, bonuses)
}

func TestBonusWindowsCompoundButPayOncePerPeriod(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC)
	recent := f.user(t, "recent@example.com")
	month := f.user(t, "month@example.com")
	quarter := f.user(t, "quarter@example.com")
	stale := f.user(t, "stale@example.com")
	f.activeAt(t, recent, now.AddDate(0, 0, -2))
	f.activeAt(t, month, now.AddDate(0, 0, -20))
	f.activeAt(t, quarter, now.AddDate(0, 0, -60))
	f.activeAt(t, stale, now.AddDate(0, 0, -120))

	weekly, err := f.ledger.EvaluateBonus(ctx, store.BonusWeekly, now)
	require.NoError(t, err)
	require.Equal(t, 1, weekly.Awarded)
	require.Equal(t, "2026-W42", weekly.Period)
	monthly, err := f.ledger.EvaluateBonus(ctx, store.BonusMonthly, now)
	require.NoError(t, err)
	require.Equal(t, 2, monthly.Awarded)
	quarterly, err := f.ledger.EvaluateBonus(ctx, store.BonusQuarterly, now)
	require.NoError(t, err)
	require.Equal(t, 3, quarterly.Awarded)

	again, err := f.ledger.EvaluateBonus(ctx, store.BonusWeekly, now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 0, again.Awarded)
	require.Equal(t, 1, again.Skipped)

	totals := map[int64]int{}
	for _, u := range []*store.User{recent, month, quarter, stale} {
		p, _, err := f.ledger.Profile(ctx, u.ID)
		require.NoError(t, err)
		totals[u.ID] = p.TotalPoints
	}
	require.Equal(t, 2+6+3+1, totals[recent.ID])
	require.Equal(t, 2+3+1, totals[month.ID])
	require.Equal(t, 2+1, totals[quarter.ID])
	require.Equal(t, 2, totals[stale.ID])

	_, bonuses, err := f.ledger.Profile(ctx, recent.ID)
	require.NoError(t, err)
	require.Len(t, bonuses, 3)
}

func TestEvaluateBonusRejectsUnknownType(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.ledger.EvaluateBonus(context.Background(), store.BonusType("daily"), time.Now())
	require.Error(t, err)
}

func TestLeaderboardCacheFlushedOnAward(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	now := utils.NowUTC()
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")
	f.activeAt(t, a, now.AddDate(0, 0, -1))
	f.activeAt(t, a, now.AddDate(0, 0, -1))
	f.activeAt(t, b, now.AddDate(0, 0, -40))

	board, err := f.ledger.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, a.ID, board[0].UserID)

	// bypass the ledger: the cached board stays as it was
	_, err = f.rewards.AddPoints(ctx, nil, b.ID, 10, nil)
	require.NoError(t, err)
	board, err = f.ledger.Leaderboard(ctx)
	require.NoError(t, err)
	require.Equal(t, a.ID, board[0].UserID)

	_, err = f.ledger.EvaluateBonus(ctx, store.BonusQuarterly, now)
	require.NoError(t, err)
	board, err = f.ledger.Leaderboard(ctx)
	require.NoError(t, err)
	require.Equal(t, b.ID, board[0].UserID)
	require.Equal(t, 2+10+1, board[0].TotalPoints)
	require.Equal(t, 1, board[0].BonusTotal)
	require.Equal(t, 1, board[0].Rank)
}
