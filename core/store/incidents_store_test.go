package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"worksafety/core/apperr"
	"worksafety/core/utils"
	"worksafety/core/workflow"
)

func newIncident(name string, creator *User, site *Site) *Incident {
	inc := &Incident{
		Name:            name,
		Type:            IncidentTypeNearMiss,
		PotentialInjury: boolp(true),
		PrincipalCause:  "wet floor",
		ConsequencePA:   "slip",
		SolutionPA:      "signage",
	}
	if creator != nil {
		inc.CreatedBy = int64p(creator.ID)
	}
	if site != nil {
		inc.SiteID = int64p(site.ID)
	}
	return inc
}

func TestIncidentReferencesAreSequential(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewIncidentsStore(db, "INC")
	u := seedUser(t, db, "a@example.com", "technician")
	var refs []string
	for i := 0; i < 3; i++ {
		inc := newIncident("fall", u, nil)
		if _, err := s.CreateIncident(ctx, inc); err != nil {
			t.Fatalf("create: %v", err)
		}
		if inc.Status != workflow.StatusPending {
			t.Fatalf("expected pending, got %s", inc.Status)
		}
		refs = append(refs, inc.Reference)
	}
	want := []string{"INC-000001", "INC-000002", "INC-000003"}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("reference %d: expected %s, got %s", i, want[i], refs[i])
		}
	}
}

func TestIncidentReferenceSeedsFromHighestRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := utils.NowUTC()
	if _, err := db.ExecContext(ctx, `INSERT INTO incidents(reference, name, status, incident_type, report_date, updated_at) VALUES(?,?,?,?,?,?)`,
		"INC-000041", "imported", "done", "PA", now, now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := NewIncidentsStore(db, "INC")
	inc := newIncident("next", nil, nil)
	if _, err := s.CreateIncident(ctx, inc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if inc.Reference != "INC-000042" {
		t.Fatalf("expected INC-000042, got %s", inc.Reference)
	}
}

func TestIncidentCreateRunsHooksInTransaction(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewIncidentsStore(db, "INC")
	boom := errors.New("hook failed")
	inc := newIncident("rolled back", nil, nil)
	_, err := s.CreateIncident(ctx, inc, func(ctx context.Context, tx *Tx, created *Incident) error {
		if created.ID == 0 || created.Reference == "" {
			t.Fatalf("hook must see inserted row")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	_, total, err := s.ListIncidents(ctx, IncidentFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected rollback, found %d rows", total)
	}
	ok := newIncident("kept", nil, nil)
	if _, err := s.CreateIncident(ctx, ok); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok.Reference != "INC-000001" {
		t.Fatalf("rolled back creation must not consume a number, got %s", ok.Reference)
	}
}

func TestTransitionIncidentRequiresSourceStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewIncidentsStore(db, "INC")
	u := seedUser(t, db, "b@example.com", "technician")
	inc := newIncident("spill", u, nil)
	if _, err := s.CreateIncident(ctx, inc); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.TransitionIncident(ctx, inc.ID, workflow.StatusOngoing, workflow.StatusResolved, nil)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := s.GetIncident(ctx, inc.ID)
	if got.Status != workflow.StatusPending {
		t.Fatalf("status must not change, got %s", got.Status)
	}
	if err := s.TransitionIncident(ctx, inc.ID, workflow.StatusPending, workflow.StatusOngoing, int64p(u.ID)); err != nil {
		t.Fatalf("transition: %v", err)
	}
	got, _ = s.GetIncident(ctx, inc.ID)
	if got.Status != workflow.StatusOngoing || got.UpdatedBy == nil || *got.UpdatedBy != u.ID {
		t.Fatalf("unexpected incident after transition: %+v", got)
	}
}

func TestAssignIncidentOnlyWhilePending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewIncidentsStore(db, "INC")
	a := seedUser(t, db, "a@example.com", "technician")
	b := seedUser(t, db, "b@example.com", "technician")
	inc := newIncident("ladder", a, nil)
	if _, err := s.CreateIncident(ctx, inc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.AssignIncident(ctx, inc.ID, int64p(b.ID), a.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := s.TransitionIncident(ctx, inc.ID, workflow.StatusPending, workflow.StatusOngoing, int64p(b.ID)); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := s.AssignIncident(ctx, inc.ID, int64p(a.ID), a.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict when reassigning ongoing incident, got %v", err)
	}
	got, _ := s.GetIncident(ctx, inc.ID)
	if got.AssignedTo == nil || *got.AssignedTo != b.ID {
		t.Fatalf("assignee must stay %d, got %v", b.ID, got.AssignedTo)
	}
}

func TestListIncidentsVisibilityAndPaging(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewIncidentsStore(db, "INC")
	a := seedUser(t, db, "a@example.com", "technician")
	b := seedUser(t, db, "b@example.com", "technician")
	site := seedSite(t, db, "CASA1")
	for i := 0; i < 4; i++ {
		if _, err := s.CreateIncident(ctx, newIncident("a", a, site)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	assigned := newIncident("b-assigned-to-a", b, nil)
	assigned.AssignedTo = int64p(a.ID)
	if _, err := s.CreateIncident(ctx, assigned); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateIncident(ctx, newIncident("b-only", b, nil)); err != nil {
		t.Fatalf("create: %v", err)
	}

	items, total, err := s.ListIncidents(ctx, IncidentFilter{VisibleTo: a.ID, Limit: 3, Sort: "reference"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(items) != 3 {
		t.Fatalf("expected 5 visible with page of 3, got total=%d page=%d", total, len(items))
	}
	if items[0].Reference != "INC-000001" {
		t.Fatalf("expected ascending reference sort, got %s", items[0].Reference)
	}
	_, total, _ = s.ListIncidents(ctx, IncidentFilter{SiteID: site.ID})
	if total != 4 {
		t.Fatalf("expected 4 incidents on site, got %d", total)
	}
	counts, err := s.CountIncidentsByStatus(ctx, IncidentFilter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[workflow.StatusPending] != 6 || counts[workflow.StatusDone] != 0 {
		t.Fatalf("unexpected counts %v", counts)
	}
	from := utils.NowUTC().Add(-time.Hour)
	_, total, _ = s.ListIncidents(ctx, IncidentFilter{ReportedFrom: &from, Search: "only"})
	if total != 1 {
		t.Fatalf("expected search+date filter to match one row, got %d", total)
	}
}
