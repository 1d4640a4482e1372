package incidents

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"worksafety/config"
	"worksafety/core/apperr"
	"worksafety/core/auth"
	"worksafety/core/metrics"
	"worksafety/core/notify"
	"worksafety/core/perimeters"
	"worksafety/core/rbac"
	"worksafety/core/rewards"
	"worksafety/core/sites"
	"worksafety/core/store"
	"worksafety/core/utils"
	"worksafety/core/workflow"
)

type fixture struct {
	svc     *Service
	db      *store.DB
	users   store.UsersStore
	rewards store.RewardsStore
	notes   store.NotificationsStore
	perims  store.PerimetersStore
	sites   store.SitesStore
	metrics *metrics.Metrics
	site    *store.Site
	other   *store.Site
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := utils.NewNopLogger()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "incidents.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.ApplyMigrations(ctx, db, logger))

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	f := &fixture{
		db:      db,
		users:   store.NewUsersStore(db),
		rewards: store.NewRewardsStore(db),
		notes:   store.NewNotificationsStore(db),
		perims:  store.NewPerimetersStore(db),
		sites:   store.NewSitesStore(db),
		metrics: m,
	}
	dispatcher := notify.NewStoreDispatcher(f.notes, m, logger)
	ledger := rewards.NewLedger(config.RewardsConfig{
		IncidentPoints: 2, WeeklyPoints: 6, MonthlyPoints: 3, QuarterlyPoints: 1,
		WeeklyWindowDays: 7, MonthlyWindowDays: 30, QuarterlyWindowDays: 90,
		LeaderboardSize: 10, LeaderboardCacheTTL: time.Minute, NotifyTotals: true,
	}, f.rewards, dispatcher, m, logger)
	f.svc = NewService(config.IncidentsConfig{RefPrefix: "INC", PerPage: 5, MaxPerPage: 50, NotifyOnCreate: true}, Deps{
		Store:      store.NewIncidentsStore(db, "INC"),
		Users:      f.users,
		Sites:      sites.NewService(config.SitesConfig{MaxLatitude: 90, MaxLongitude: 180}, f.sites, logger),
		Perimeters: perimeters.NewService(f.perims, f.sites, f.users, logger),
		Ledger:     ledger,
		Policy:     rbac.NewPolicy(rbac.DefaultRoles()),
		Dispatcher: dispatcher,
		Metrics:    m,
		Logger:     logger,
	})

	c := &store.Company{Name: "Acme", LegalForm: "sarl"}
	_, err = f.sites.CreateCompany(ctx, c)
	require.NoError(t, err)
	f.site = &store.Site{Reference: "CASA1", Name: "Casablanca", CompanyID: c.ID, Region: "MA06", Active: true}
	_, err = f.sites.CreateSite(ctx, f.site)
	require.NoError(t, err)
	f.other = &store.Site{Reference: "RABT1", Name: "Rabat", CompanyID: c.ID, Region: "MA04", Active: true}
	_, err = f.sites.CreateSite(ctx, f.other)
	require.NoError(t, err)
	return f
}

func (f *fixture) actor(t *testing.T, email, role string, allowed ...int64) auth.Actor {
	t.Helper()
	ctx := context.Background()
	u := &store.User{Email: email, FirstName: email, Role: role, IsInternal: true, Active: true}
	_, err := f.users.Create(ctx, u)
	require.NoError(t, err)
	for _, site := range allowed {
		require.NoError(t, f.rewards.AddAllowedSite(ctx, u.ID, site))
	}
	return auth.ActorFromUser(u)
}

func observation(name string) *store.Incident {
	return &store.Incident{
		Name:           name,
		Type:           store.IncidentTypeObservation,
		ConsequenceOSE: "slippery floor",
		SolutionOSE:    "cleaned",
	}
}

func requireWarning(t *testing.T, err error, code string) {
	t.Helper()
	var w *apperr.PolicyWarning
	require.ErrorAs(t, err, &w)
	require.Equal(t, code, w.Code)
}

func requireInvalid(t *testing.T, err error, code string) {
	t.Helper()
	var v *apperr.ValidationError
	require.ErrorAs(t, err, &v)
	require.Equal(t, code, v.Code)
}

func TestValidateByType(t *testing.T) {
	yes := true
	no := false
	cases := []struct {
		name  string
		inc   store.Incident
		field string
	}{
		{"missing name", store.Incident{Type: store.IncidentTypeObservation}, "name"},
		{"unknown type", store.Incident{Name: "x", Type: "XX"}, "incident_type"},
		{"pa without injury flag", store.Incident{Name: "x", Type: store.IncidentTypeNearMiss}, "potential_injury"},
		{"pa without cause", store.Incident{Name: "x", Type: store.IncidentTypeNearMiss, PotentialInjury: &no}, "principal_cause"},
		{"pa without solution", store.Incident{Name: "x", Type: store.IncidentTypeNearMiss, PotentialInjury: &no, PrincipalCause: "c", ConsequencePA: "c"}, "solution_pa"},
		{"ose without consequence", store.Incident{Name: "x", Type: store.IncidentTypeObservation}, "consequence_ose"},
		{"ose corrective without photo", store.Incident{Name: "x", Type: store.IncidentTypeObservation, ConsequenceOSE: "c", SolutionOSE: "s", CorrectiveAction: &yes}, "corrective_photo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inc := tc.inc
			var v *apperr.ValidationError
			require.ErrorAs(t, Validate(&inc), &v)
			require.Equal(t, tc.field, v.Field)
		})
	}

	ok := store.Incident{Name: "x", Type: store.IncidentTypeNearMiss, PotentialInjury: &yes, PrincipalCause: "c", ConsequencePA: "c", SolutionPA: "s"}
	require.NoError(t, Validate(&ok))
	ose := store.Incident{Name: "x", Type: store.IncidentTypeObservation, ConsequenceOSE: "c", SolutionOSE: "s", CorrectiveAction: &yes, CorrectivePhoto: "p.jpg"}
	require.NoError(t, Validate(&ose))
}

func TestCreateNumbersAndCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", rbac.RoleSeller, f.site.ID)

	var refs []string
	for i := 0; i < 3; i++ {
		inc := observation("spill")
		require.NoError(t, f.svc.Create(ctx, a, inc))
		require.Equal(t, workflow.StatusPending, inc.Status)
		require.Equal(t, f.site.ID, *inc.SiteID, "single allowed site is picked")
		refs = append(refs, inc.Reference)
	}
	require.Equal(t, []string{"INC-000001", "INC-000002", "INC-000003"}, refs)

	p, err := f.rewards.GetProfile(ctx, a.UserID)
	require.NoError(t, err)
	require.Equal(t, 6, p.TotalPoints)
	require.NotNil(t, p.LastIncidentDate)
	require.WithinDuration(t, time.Now(), *p.LastIncidentDate, time.Minute)
	require.Equal(t, float64(3), testutil.ToFloat64(f.metrics.IncidentsCreated.WithLabelValues("OSE")))
}

func TestCreateIgnoresClientReportDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", rbac.RoleSeller, f.site.ID)
	future := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	inc := observation("spill")
	inc.ReportDate = future
	require.NoError(t, f.svc.Create(ctx, a, inc))
	require.WithinDuration(t, time.Now(), inc.ReportDate, time.Minute)

	stored, err := f.svc.Get(ctx, a, inc.ID)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), stored.ReportDate, time.Minute)

	p, err := f.rewards.GetProfile(ctx, a.UserID)
	require.NoError(t, err)
	require.NotNil(t, p.LastIncidentDate)
	require.WithinDuration(t, time.Now(), *p.LastIncidentDate, time.Minute)

	stored.ReportDate = future
	require.NoError(t, f.svc.Update(ctx, a, stored))
	again, err := f.svc.Get(ctx, a, inc.ID)
	require.NoError(t, err)
	require.WithinDuration(t, inc.ReportDate, again.ReportDate, time.Second)
}

func TestCreateSiteScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", rbac.RoleSeller, f.site.ID)
	admin := f.actor(t, "root@example.com", rbac.RoleAdmin)

	inc := observation("wrong site")
	inc.SiteID = &f.other.ID
	requireInvalid(t, f.svc.Create(ctx, a, inc), "incidents.siteNotAllowed")
	require.Zero(t, inc.ID)

	inc = observation("admin anywhere")
	inc.SiteID = &f.other.ID
	require.NoError(t, f.svc.Create(ctx, admin, inc))

	loc := &store.Location{SiteID: f.other.ID, Name: "Dock"}
	_, err := f.sites.CreateLocation(ctx, loc)
	require.NoError(t, err)
	inc = observation("bad location")
	inc.LocationID = &loc.ID
	requireInvalid(t, f.svc.Create(ctx, a, inc), "incidents.locationSite")

	p, err := f.rewards.GetProfile(ctx, a.UserID)
	if err == nil {
		require.Zero(t, p.TotalPoints, "refused creations award nothing")
	}
}

func TestCreateNotifiesSubscribers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", rbac.RoleSeller, f.site.ID)
	watcher := f.actor(t, "hse@example.com", rbac.RoleManager)
	elsewhere := f.actor(t, "far@example.com", rbac.RoleManager)

	onSite := &store.Perimeter{ExternalID: "Z1", Name: "Zone 1", SiteID: &f.site.ID}
	_, err := f.perims.CreatePerimeter(ctx, onSite)
	require.NoError(t, err)
	offSite := &store.Perimeter{ExternalID: "Z2", Name: "Zone 2", SiteID: &f.other.ID}
	_, err = f.perims.CreatePerimeter(ctx, offSite)
	require.NoError(t, err)
	_, err = f.perims.AddUserPerimeter(ctx, &store.UserPerimeterRel{UserID: watcher.UserID, PerimeterID: onSite.ID, WebNotifications: true})
	require.NoError(t, err)
	_, err = f.perims.AddUserPerimeter(ctx, &store.UserPerimeterRel{UserID: elsewhere.UserID, PerimeterID: offSite.ID, WebNotifications: true})
	require.NoError(t, err)

	inc := observation("spill")
	require.NoError(t, f.svc.Create(ctx, a, inc))

	got, err := f.notes.ListNotifications(ctx, watcher.UserID, false, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "New incident INC-000001", got[0].Title)
	require.Equal(t, string(notify.KindIncident), got[0].RelatedKind)
	require.Equal(t, inc.ID, *got[0].RelatedID)

	n, err := f.notes.CountUnread(ctx, elsewhere.UserID)
	require.NoError(t, err)
	require.Zero(t, n)

	// the reporter hears about the points instead
	mine, err := f.notes.ListNotifications(ctx, a.UserID, false, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Your points total", mine[0].Title)
}

func TestLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", rbac.RoleSeller, f.site.ID)
	b := f.actor(t, "b@example.com", rbac.RoleTechnician, f.site.ID)
	m := f.actor(t, "m@example.com", rbac.RoleManager)

	inc := observation("loose cable")
	require.NoError(t, f.svc.Create(ctx, a, inc))

	_, err := f.svc.AdvanceStatus(ctx, a, inc.ID, workflow.StartWork)
	requireWarning(t, err, "incidents.notAssignee")
	got, err := f.svc.Get(ctx, m, inc.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, got.Status)

	got, err = f.svc.Assign(ctx, m, inc.ID, &b.UserID)
	require.NoError(t, err)
	require.Equal(t, b.UserID, *got.AssignedTo)

	got, err = f.svc.AdvanceStatus(ctx, b, inc.ID, workflow.StartWork)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusOngoing, got.Status)
	require.Equal(t, b.UserID, *got.UpdatedBy)

	_, err = f.svc.Assign(ctx, m, inc.ID, &a.UserID)
	requireWarning(t, err, "incidents.assignmentLocked")

	_, err = f.svc.AdvanceStatus(ctx, b, inc.ID, workflow.MarkAsDone)
	requireWarning(t, err, "incidents.invalidTransition")

	got, err = f.svc.AdvanceStatus(ctx, b, inc.ID, workflow.CloseWork)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusResolved, got.Status)

	got, err = f.svc.AdvanceStatus(ctx, b, inc.ID, "")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusDone, got.Status)

	_, err = f.svc.AdvanceStatus(ctx, b, inc.ID, workflow.StartWork)
	requireWarning(t, err, "incidents.alreadyDone")
	got, err = f.svc.Get(ctx, m, inc.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusDone, got.Status)

	inc.Name = "edited"
	requireWarning(t, f.svc.Update(ctx, a, inc), "incidents.locked")

	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("incident", "start_work")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.TransitionRefusals.WithLabelValues("incident", "already_done")))
}

func TestAssignRequiresPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", rbac.RoleSeller, f.site.ID)
	inc := observation("x")
	require.NoError(t, f.svc.Create(ctx, a, inc))
	_, err := f.svc.Assign(ctx, a, inc.ID, &a.UserID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	m := f.actor(t, "m@example.com", rbac.RoleManager)
	missing := int64(999)
	_, err = f.svc.Assign(ctx, m, inc.ID, &missing)
	requireInvalid(t, err, "incidents.assigneeNotFound")
}

func TestStartWorkNeedsStatusPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", rbac.RoleSeller, f.site.ID)
	m := f.actor(t, "m@example.com", rbac.RoleManager)
	inc := observation("x")
	require.NoError(t, f.svc.Create(ctx, a, inc))
	_, err := f.svc.Assign(ctx, m, inc.ID, &a.UserID)
	require.NoError(t, err)

	_, err = f.svc.AdvanceStatus(ctx, a, inc.ID, workflow.StartWork)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestListVisibilityAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", rbac.RoleSeller, f.site.ID)
	c := f.actor(t, "c@example.com", rbac.RoleDriver, f.site.ID)
	m := f.actor(t, "m@example.com", rbac.RoleManager)
	for i := 0; i < 7; i++ {
		require.NoError(t, f.svc.Create(ctx, a, observation("spill")))
	}
	assigned := observation("for c")
	require.NoError(t, f.svc.Create(ctx, a, assigned))
	_, err := f.svc.Assign(ctx, m, assigned.ID, &c.UserID)
	require.NoError(t, err)

	page, err := f.svc.List(ctx, a, store.IncidentFilter{}, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 8, page.Total)
	require.Len(t, page.Items, 5)
	page, err = f.svc.List(ctx, a, store.IncidentFilter{}, 2, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	page, err = f.svc.List(ctx, c, store.IncidentFilter{}, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, assigned.ID, page.Items[0].ID)

	_, err = f.svc.Get(ctx, c, page.Items[0].ID-1)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	page, err = f.svc.List(ctx, m, store.IncidentFilter{}, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, 8, page.Total)
	require.Equal(t, 50, page.PerPage)

	counts, err := f.svc.Dashboard(ctx, c)
	require.NoError(t, err)
	require.Equal(t, 1, counts[workflow.StatusPending])
	require.Equal(t, 0, counts[workflow.StatusDone])
}

func TestDeleteAndRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", rbac.RoleSeller, f.site.ID)
	m := f.actor(t, "m@example.com", rbac.RoleManager)
	inc := observation("x")
	require.NoError(t, f.svc.Create(ctx, a, inc))

	require.ErrorIs(t, f.svc.Delete(ctx, a, inc.ID), apperr.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, m, inc.ID))
	_, err := f.svc.Get(ctx, m, inc.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, m, inc.ID), apperr.ErrNotFound)

	got, err := f.svc.Restore(ctx, m, inc.ID)
	require.NoError(t, err)
	require.Equal(t, inc.Reference, got.Reference)

	label, err := f.svc.Label(ctx, inc.ID)
	require.NoError(t, err)
	require.Equal(t, "INC-000001 x", label)
}
