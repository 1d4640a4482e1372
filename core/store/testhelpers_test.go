package store

import (
	"context"
	"path/filepath"
	"testing"

	"worksafety/core/utils"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := utils.NewNopLogger()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *DB, email, role string) *User {
	t.Helper()
	u := &User{Email: email, FirstName: "First", LastName: email, Role: role, IsInternal: true, Active: true}
	if _, err := NewUsersStore(db).Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func seedSite(t *testing.T, db *DB, ref string) *Site {
	t.Helper()
	ctx := context.Background()
	sites := NewSitesStore(db)
	c := &Company{Name: "Acme " + ref, LegalForm: "sarl"}
	if _, err := sites.CreateCompany(ctx, c); err != nil {
		t.Fatalf("create company: %v", err)
	}
	st := &Site{Reference: ref, Name: "Site " + ref, CompanyID: c.ID, Region: "MA01", Active: true}
	if _, err := sites.CreateSite(ctx, st); err != nil {
		t.Fatalf("create site: %v", err)
	}
	return st
}

func int64p(v int64) *int64 { return &v }

func boolp(v bool) *bool { return &v }
