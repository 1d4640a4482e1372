package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"worksafety/core/apperr"
)

func nullableID(v *int64) any {
	if v == nil || *v <= 0 {
		return nil
	}
	return *v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

func likePattern(s string) string {
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, "_", "")
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

func errNotFound() error {
	return apperr.ErrNotFound
}

// rowLock returns the locking clause for mode ("SHARE" or "UPDATE") on postgres.
// sqlite serializes writers at the database level and has no row locks.
func rowLock(d Dialect, mode string) string {
	if d != DialectPostgres {
		return ""
	}
	return " FOR " + mode
}

// requireLive fails with a validation error unless the parent row is live.
// On postgres the row stays share-locked until tx ends.
func requireLive(ctx context.Context, tx *Tx, table string, id int64, field, code, msg string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id=? AND deleted=FALSE`+rowLock(tx.Dialect(), "SHARE"), id).Scan(&one)
	if err == nil {
		return nil
	}
	if err = scanErr(err); isNotFound(err) {
		return apperr.Invalid(field, code, "%s", msg)
	}
	return err
}
