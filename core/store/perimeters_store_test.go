package store

import (
	"context"
	"errors"
	"testing"

	"worksafety/core/apperr"
)

func TestSingleAssignableUserPerPerimeter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewPerimetersStore(db)
	a := seedUser(t, db, "a@example.com", "manager")
	b := seedUser(t, db, "b@example.com", "manager")
	p := &Perimeter{ExternalID: "ZONE-A", Name: "Zone A", DisplayOrder: 1}
	if _, err := s.CreatePerimeter(ctx, p); err != nil {
		t.Fatalf("create perimeter: %v", err)
	}
	if _, err := s.AddUserPerimeter(ctx, &UserPerimeterRel{UserID: a.ID, PerimeterID: p.ID, AssignTickets: true, WebNotifications: true}); err != nil {
		t.Fatalf("first assignable: %v", err)
	}
	_, err := s.AddUserPerimeter(ctx, &UserPerimeterRel{UserID: b.ID, PerimeterID: p.ID, AssignTickets: true})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) || verr.Code != "perimeters.assignableTaken" {
		t.Fatalf("expected assignable conflict, got %v", err)
	}
	if _, err := s.AddUserPerimeter(ctx, &UserPerimeterRel{UserID: b.ID, PerimeterID: p.ID}); err != nil {
		t.Fatalf("non-assignable relation must be allowed: %v", err)
	}
	holder, err := s.AssignableUser(ctx, p.ID)
	if err != nil || holder.UserID != a.ID {
		t.Fatalf("expected %d as assignable, got %+v %v", a.ID, holder, err)
	}
	err = s.UpdateUserPerimeter(ctx, &UserPerimeterRel{UserID: b.ID, PerimeterID: p.ID, AssignTickets: true})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error on update, got %v", err)
	}
	if _, err := s.AddUserPerimeter(ctx, &UserPerimeterRel{UserID: a.ID, PerimeterID: p.ID}); !apperr.IsValidation(err) {
		t.Fatalf("expected duplicate relation rejection, got %v", err)
	}
}

func TestListPerimetersForSiteIncludesGlobal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewPerimetersStore(db)
	s1 := seedSite(t, db, "SITE1")
	s2 := seedSite(t, db, "SITE2")
	for i, p := range []*Perimeter{
		{ExternalID: "G", Name: "Global", DisplayOrder: 1},
		{ExternalID: "S1", Name: "One", DisplayOrder: 2, SiteID: int64p(s1.ID)},
		{ExternalID: "S2", Name: "Two", DisplayOrder: 3, SiteID: int64p(s2.ID)},
	} {
		if _, err := s.CreatePerimeter(ctx, p); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	got, err := s.ListPerimeters(ctx, PerimeterFilter{SiteIDs: []int64{s1.ID}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ExternalID != "G" || got[1].ExternalID != "S1" {
		t.Fatalf("unexpected perimeters %+v", got)
	}
	all, _ := s.ListPerimeters(ctx, PerimeterFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 perimeters without filter, got %d", len(all))
	}
}

func TestPerimeterDisplayOrderUniquePerSite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewPerimetersStore(db)
	site := seedSite(t, db, "SITE1")
	if _, err := s.CreatePerimeter(ctx, &Perimeter{ExternalID: "A", Name: "A", DisplayOrder: 5, SiteID: int64p(site.ID)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.CreatePerimeter(ctx, &Perimeter{ExternalID: "B", Name: "B", DisplayOrder: 5, SiteID: int64p(site.ID)})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) || verr.Field != "display_order" {
		t.Fatalf("expected display order conflict, got %v", err)
	}
	_, err = s.CreatePerimeter(ctx, &Perimeter{ExternalID: "A", Name: "dup", DisplayOrder: 6})
	if !errors.As(err, &verr) || verr.Field != "external_id" {
		t.Fatalf("expected external id conflict, got %v", err)
	}
}

func TestWebSubscribers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewPerimetersStore(db)
	site := seedSite(t, db, "SITE1")
	other := seedSite(t, db, "SITE2")
	a := seedUser(t, db, "a@example.com", "manager")
	b := seedUser(t, db, "b@example.com", "manager")
	c := seedUser(t, db, "c@example.com", "manager")
	global := &Perimeter{ExternalID: "G", Name: "G", DisplayOrder: 1}
	onSite := &Perimeter{ExternalID: "S", Name: "S", DisplayOrder: 2, SiteID: int64p(site.ID)}
	offSite := &Perimeter{ExternalID: "O", Name: "O", DisplayOrder: 3, SiteID: int64p(other.ID)}
	for _, p := range []*Perimeter{global, onSite, offSite} {
		if _, err := s.CreatePerimeter(ctx, p); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	rels := []*UserPerimeterRel{
		{UserID: a.ID, PerimeterID: global.ID, WebNotifications: true},
		{UserID: b.ID, PerimeterID: onSite.ID, WebNotifications: true},
		{UserID: c.ID, PerimeterID: offSite.ID, WebNotifications: true},
		{UserID: c.ID, PerimeterID: onSite.ID, WebNotifications: false},
	}
	for _, r := range rels {
		if _, err := s.AddUserPerimeter(ctx, r); err != nil {
			t.Fatalf("rel: %v", err)
		}
	}
	got, err := s.WebSubscribers(ctx, int64p(site.ID))
	if err != nil {
		t.Fatalf("subscribers: %v", err)
	}
	if len(got) != 2 || got[0] != a.ID || got[1] != b.ID {
		t.Fatalf("expected [%d %d], got %v", a.ID, b.ID, got)
	}
}
