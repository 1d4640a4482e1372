package store

import "testing"

func TestRebindPostgres(t *testing.T) {
	got := rebind(DialectPostgres, `SELECT * FROM t WHERE a=? AND b='?' AND c IN (?,?)`)
	want := `SELECT * FROM t WHERE a=$1 AND b='?' AND c IN ($2,$3)`
	if got != want {
		t.Fatalf("rebind mismatch:\n got %s\nwant %s", got, want)
	}
	if rebind(DialectSQLite, "a=?") != "a=?" {
		t.Fatalf("sqlite queries must be left untouched")
	}
}

func TestReferenceFormatting(t *testing.T) {
	if got := formatReference("INC", 7); got != "INC-000007" {
		t.Fatalf("unexpected reference %s", got)
	}
	if got := parseReferenceSeq("ACT-000123"); got != 123 {
		t.Fatalf("expected 123, got %d", got)
	}
	if got := parseReferenceSeq("garbage"); got != 0 {
		t.Fatalf("expected 0 for unparsable reference, got %d", got)
	}
	if got := parseReferenceSeq(""); got != 0 {
		t.Fatalf("expected 0 for empty reference, got %d", got)
	}
}
