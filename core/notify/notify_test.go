package notify

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"worksafety/core/store"
	"worksafety/core/utils"
)

func TestBadge(t *testing.T) {
	require.Equal(t, "", Badge(0))
	require.Equal(t, "7", Badge(7))
	require.Equal(t, "99", Badge(99))
	require.Equal(t, "99+", Badge(100))
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(KindIncident, func(ctx context.Context, id int64) (string, error) {
		if id == 1 {
			return "INC-000001", nil
		}
		return "", errors.New("gone")
	})
	ctx := context.Background()
	require.Equal(t, "INC-000001", r.Resolve(ctx, Ref{Kind: KindIncident, ID: 1}))
	require.Equal(t, "incident #2", r.Resolve(ctx, Ref{Kind: KindIncident, ID: 2}))
	require.Equal(t, "bonus #3", r.Resolve(ctx, Ref{Kind: KindBonus, ID: 3}))
	var nilRegistry *Registry
	require.Equal(t, "site #4", nilRegistry.Resolve(ctx, Ref{Kind: KindSite, ID: 4}))
}

func TestDispatchAndInbox(t *testing.T) {
	ctx := context.Background()
	logger := utils.NewNopLogger()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "n.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.ApplyMigrations(ctx, db, logger))
	u := &store.User{Email: "n@example.com", Role: "seller", Active: true}
	_, err = store.NewUsersStore(db).Create(ctx, u)
	require.NoError(t, err)

	ns := store.NewNotificationsStore(db)
	d := NewStoreDispatcher(ns, nil, logger)
	require.Error(t, d.Notify(ctx, Notice{UserID: u.ID, Title: "x", Related: &Ref{Kind: "order", ID: 1}}))
	require.NoError(t, d.Notify(ctx, Notice{UserID: u.ID, Title: "Your points total", Message: "You now have 2 points.", Related: RefTo(KindIncident, 9)}))

	reg := NewRegistry()
	reg.Register(KindIncident, func(ctx context.Context, id int64) (string, error) { return "INC-000009", nil })
	inbox := NewInbox(ns, reg)
	items, err := inbox.List(ctx, u.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "INC-000009", items[0].RelatedLabel)

	n, badge, err := inbox.Unread(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "1", badge)
	require.NoError(t, inbox.MarkRead(ctx, u.ID, items[0].ID))
	n, _, err = inbox.Unread(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}
