package store

import (
	"context"
	"errors"
	"fmt"

	"worksafety/core/apperr"
	"worksafety/core/utils"
)

// dependent is a soft-deletable table holding a foreign key to another soft-deletable table.
type dependent struct {
	table  string
	column string
	label  string
}

var softDeleteDependents = map[string][]dependent{
	"companies": {
		{table: "sites", column: "company_id", label: "site"},
	},
	"sites": {
		{table: "locations", column: "site_id", label: "location"},
		{table: "perimeters", column: "site_id", label: "perimeter"},
		{table: "incidents", column: "site_id", label: "incident"},
	},
	"locations": {
		{table: "incidents", column: "location_id", label: "incident"},
	},
	"users": {
		{table: "incidents", column: "created_by", label: "incident"},
		{table: "incidents", column: "updated_by", label: "incident"},
		{table: "incidents", column: "assigned_to", label: "incident"},
		{table: "plan_actions", column: "created_by", label: "plan action"},
		{table: "plan_actions", column: "updated_by", label: "plan action"},
	},
	"perimeter_categories": {
		{table: "perimeters", column: "category_id", label: "perimeter"},
	},
	"perimeters": {
		{table: "perimeters", column: "parent_id", label: "perimeter"},
	},
	"incidents": {
		{table: "plan_actions", column: "incident_id", label: "plan action"},
	},
	"plan_actions": nil,
}

// SoftDeleter flips the deleted flag after checking live dependents in the same transaction.
// The row is locked first, so inserts holding a share lock on it finish before the check.
type SoftDeleter struct {
	db *DB
}

func NewSoftDeleter(db *DB) *SoftDeleter {
	return &SoftDeleter{db: db}
}

func (s *SoftDeleter) Delete(ctx context.Context, table string, id int64) error {
	deps, ok := softDeleteDependents[table]
	if !ok {
		return fmt.Errorf("soft delete: unknown table %q", table)
	}
	if id <= 0 {
		return apperr.Invalid("id", "softdelete.notPersisted", "cannot delete an entity that was never saved")
	}
	return s.db.InTx(ctx, true, func(tx *Tx) error {
		var deleted bool
		if err := tx.QueryRowContext(ctx, `SELECT deleted FROM `+table+` WHERE id=?`+rowLock(tx.Dialect(), "UPDATE"), id).Scan(&deleted); err != nil {
			return scanErr(err)
		}
		if deleted {
			return apperr.ErrNotFound
		}
		for _, dep := range deps {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+dep.table+` WHERE `+dep.column+`=? AND deleted=FALSE LIMIT 1`, id).Scan(&one)
			if err == nil {
				return apperr.Invalid("", "softdelete.referenced", "cannot delete: still referenced by a %s", dep.label)
			}
			if err = scanErr(err); !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
		}
		now := utils.NowUTC()
		_, err := tx.ExecContext(ctx, `UPDATE `+table+` SET deleted=TRUE, deleted_at=?, updated_at=? WHERE id=?`, now, now, id)
		return err
	})
}

func (s *SoftDeleter) Restore(ctx context.Context, table string, id int64) error {
	if _, ok := softDeleteDependents[table]; !ok {
		return fmt.Errorf("restore: unknown table %q", table)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET deleted=FALSE, deleted_at=NULL, updated_at=? WHERE id=? AND deleted=TRUE`, utils.NowUTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
