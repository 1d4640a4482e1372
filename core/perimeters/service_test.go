package perimeters

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"worksafety/core/apperr"
	"worksafety/core/store"
	"worksafety/core/utils"
)

type fixture struct {
	svc   *Service
	sites store.SitesStore
	users store.UsersStore
	site1 *store.Site
	site2 *store.Site
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := utils.NewNopLogger()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "p.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.ApplyMigrations(ctx, db, logger))
	f := &fixture{sites: store.NewSitesStore(db), users: store.NewUsersStore(db)}
	f.svc = NewService(store.NewPerimetersStore(db), f.sites, f.users, logger)
	c := &store.Company{Name: "Acme", LegalForm: "sa"}
	_, err = f.sites.CreateCompany(ctx, c)
	require.NoError(t, err)
	f.site1 = &store.Site{Reference: "S0001", Name: "One", CompanyID: c.ID, Region: "MA01", Active: true}
	f.site2 = &store.Site{Reference: "S0002", Name: "Two", CompanyID: c.ID, Region: "MA02", Active: true}
	_, err = f.sites.CreateSite(ctx, f.site1)
	require.NoError(t, err)
	_, err = f.sites.CreateSite(ctx, f.site2)
	require.NoError(t, err)
	return f
}

func validationCode(t *testing.T, err error) string {
	t.Helper()
	var v *apperr.ValidationError
	require.True(t, errors.As(err, &v), "expected validation error, got %v", err)
	return v.Code
}

func TestCreateRejectsSiteMismatchWithParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := &store.Perimeter{ExternalID: "R", Name: "Root", DisplayOrder: 1, SiteID: &f.site1.ID}
	require.NoError(t, f.svc.Create(ctx, root))

	other := &store.Perimeter{ExternalID: "C1", Name: "Child", DisplayOrder: 2, ParentID: &root.ID, SiteID: &f.site2.ID}
	require.Equal(t, "perimeters.siteMismatch", validationCode(t, f.svc.Create(ctx, other)))

	unset := &store.Perimeter{ExternalID: "C2", Name: "Child", DisplayOrder: 3, ParentID: &root.ID}
	require.Equal(t, "perimeters.siteMismatch", validationCode(t, f.svc.Create(ctx, unset)))

	ok := &store.Perimeter{ExternalID: "C3", Name: "Child", DisplayOrder: 4, ParentID: &root.ID, SiteID: &f.site1.ID}
	require.NoError(t, f.svc.Create(ctx, ok))
}

func TestChildOfGlobalParentMayPickAnySite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	global := &store.Perimeter{ExternalID: "G", Name: "Global", DisplayOrder: 1}
	require.NoError(t, f.svc.Create(ctx, global))
	child := &store.Perimeter{ExternalID: "G1", Name: "Child", DisplayOrder: 1, ParentID: &global.ID, SiteID: &f.site2.ID}
	require.NoError(t, f.svc.Create(ctx, child))
}

func TestUpdateRejectsCycleAndChildSiteDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := &store.Perimeter{ExternalID: "R", Name: "Root", DisplayOrder: 1, SiteID: &f.site1.ID}
	require.NoError(t, f.svc.Create(ctx, root))
	child := &store.Perimeter{ExternalID: "C", Name: "Child", DisplayOrder: 2, ParentID: &root.ID, SiteID: &f.site1.ID}
	require.NoError(t, f.svc.Create(ctx, child))

	root.ParentID = &child.ID
	require.Equal(t, "perimeters.cycle", validationCode(t, f.svc.Update(ctx, root)))

	root.ParentID = nil
	root.SiteID = &f.site2.ID
	require.Equal(t, "perimeters.childSiteMismatch", validationCode(t, f.svc.Update(ctx, root)))

	got, err := f.svc.Get(ctx, root.ID)
	require.NoError(t, err)
	require.Equal(t, f.site1.ID, *got.SiteID)
}

func TestLabeledForSite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := &store.Perimeter{ExternalID: "R", Name: "Root", DisplayOrder: 1, SiteID: &f.site1.ID}
	require.NoError(t, f.svc.Create(ctx, root))
	child := &store.Perimeter{ExternalID: "C", Name: "Child", DisplayOrder: 2, ParentID: &root.ID, SiteID: &f.site1.ID}
	require.NoError(t, f.svc.Create(ctx, child))
	global := &store.Perimeter{ExternalID: "G", Name: "Global", DisplayOrder: 3}
	require.NoError(t, f.svc.Create(ctx, global))
	elsewhere := &store.Perimeter{ExternalID: "E", Name: "Elsewhere", DisplayOrder: 1, SiteID: &f.site2.ID}
	require.NoError(t, f.svc.Create(ctx, elsewhere))

	items, err := f.svc.Labeled(ctx, []int64{f.site1.ID})
	require.NoError(t, err)
	var labels []string
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	require.Equal(t, []string{"[R] Root", "--- [C] Child", "[G] Global"}, labels)
}

func TestRelateRejectsExternalUsersAndSecondAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := &store.Perimeter{ExternalID: "R", Name: "Root", DisplayOrder: 1}
	require.NoError(t, f.svc.Create(ctx, p))
	ext := &store.User{Email: "ext@example.com", Role: "seller", Active: true}
	_, err := f.users.Create(ctx, ext)
	require.NoError(t, err)
	require.Equal(t, "perimeters.externalUser", validationCode(t, f.svc.Relate(ctx, &store.UserPerimeterRel{UserID: ext.ID, PerimeterID: p.ID})))

	a := &store.User{Email: "a@example.com", Role: "technician", IsInternal: true, Active: true}
	b := &store.User{Email: "b@example.com", Role: "technician", IsInternal: true, Active: true}
	_, err = f.users.Create(ctx, a)
	require.NoError(t, err)
	_, err = f.users.Create(ctx, b)
	require.NoError(t, err)

	none, err := f.svc.AssignableUser(ctx, p.ID)
	require.NoError(t, err)
	require.Nil(t, none)

	require.NoError(t, f.svc.Relate(ctx, &store.UserPerimeterRel{UserID: a.ID, PerimeterID: p.ID, AssignTickets: true}))
	err = f.svc.Relate(ctx, &store.UserPerimeterRel{UserID: b.ID, PerimeterID: p.ID, AssignTickets: true})
	require.Equal(t, "perimeters.assignableTaken", validationCode(t, err))

	holder, err := f.svc.AssignableUser(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, holder.UserID)
}
