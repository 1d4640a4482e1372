package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"worksafety/core/apperr"
	"worksafety/core/utils"
)

func TestNotificationsUnreadFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewNotificationsStore(db)
	u := seedUser(t, db, "a@example.com", "seller")
	base := utils.NowUTC().Add(-time.Hour)
	var ids []int64
	for i := 0; i < 3; i++ {
		n := &Notification{UserID: u.ID, Title: "t", Message: "m", RelatedKind: "incident", RelatedID: int64p(int64(i + 1)), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if _, err := s.CreateNotification(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, n.ID)
	}
	if err := s.MarkRead(ctx, u.ID, ids[2]); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := s.MarkRead(ctx, u.ID, ids[2]); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second mark must report not found, got %v", err)
	}
	list, err := s.ListNotifications(ctx, u.ID, false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != ids[1] || list[1].ID != ids[0] || list[2].ID != ids[2] {
		t.Fatalf("unexpected order %+v", list)
	}
	n, err := s.CountUnread(ctx, u.ID)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 unread, got %d %v", n, err)
	}
	if changed, _ := s.MarkAllRead(ctx, u.ID); changed != 2 {
		t.Fatalf("expected 2 marked, got %d", changed)
	}
}
