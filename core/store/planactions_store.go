package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"worksafety/core/apperr"
	"worksafety/core/utils"
	"worksafety/core/workflow"
)

type PlanAction struct {
	ID          int64           `json:"id"`
	Reference   string          `json:"reference"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	IncidentID  *int64          `json:"incident_id,omitempty"`
	Status      workflow.Status `json:"status"`
	CreatedBy   *int64          `json:"created_by,omitempty"`
	UpdatedBy   *int64          `json:"updated_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Deleted     bool            `json:"deleted,omitempty"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

type PlanActionFilter struct {
	Search     string
	Status     workflow.Status
	IncidentID int64
	CreatedBy  int64
	Sort       string
	Desc       bool
	Limit      int
	Offset     int
}

type PlanActionsStore interface {
	CreatePlanAction(ctx context.Context, pa *PlanAction) (int64, error)
	GetPlanAction(ctx context.Context, id int64) (*PlanAction, error)
	ListPlanActions(ctx context.Context, filter PlanActionFilter) ([]PlanAction, int, error)
	TransitionPlanAction(ctx context.Context, id int64, from, to workflow.Status, updatedBy *int64) error
	SoftDeletePlanAction(ctx context.Context, id int64) error
}

type planActionsStore struct {
	db      *DB
	prefix  string
	deleter *SoftDeleter
}

func NewPlanActionsStore(db *DB, refPrefix string) PlanActionsStore {
	if strings.TrimSpace(refPrefix) == "" {
		refPrefix = "ACT"
	}
	return &planActionsStore{db: db, prefix: refPrefix, deleter: NewSoftDeleter(db)}
}

const planActionColumns = `id, reference, title, description, incident_id, status, created_by, updated_by, created_at, updated_at, deleted, deleted_at`

var planActionSortColumns = map[string]string{
	"reference":  "reference",
	"title":      "title",
	"status":     "status",
	"created_at": "created_at",
}

func scanPlanAction(row interface{ Scan(...any) error }) (*PlanAction, error) {
	var pa PlanAction
	var status string
	var incidentID, createdBy, updatedBy sql.NullInt64
	var deletedAt sql.NullTime
	if err := row.Scan(&pa.ID, &pa.Reference, &pa.Title, &pa.Description, &incidentID, &status, &createdBy, &updatedBy,
		&pa.CreatedAt, &pa.UpdatedAt, &pa.Deleted, &deletedAt); err != nil {
		return nil, err
	}
	pa.Status = workflow.Status(status)
	pa.IncidentID = idPtr(incidentID)
	pa.CreatedBy = idPtr(createdBy)
	pa.UpdatedBy = idPtr(updatedBy)
	pa.DeletedAt = timePtr(deletedAt)
	return &pa, nil
}

func (s *planActionsStore) CreatePlanAction(ctx context.Context, pa *PlanAction) (int64, error) {
	if pa.Status == "" {
		pa.Status = workflow.StatusPending
	}
	var err error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		err = s.db.InTx(ctx, true, func(tx *Tx) error {
			if pa.IncidentID != nil {
				if err := requireLive(ctx, tx, "incidents", *pa.IncidentID, "incident_id", "planactions.incidentNotFound", "linked incident does not exist"); err != nil {
					return err
				}
			}
			ref, err := nextReference(ctx, tx, "plan_actions", s.prefix)
			if err != nil {
				return err
			}
			now := utils.NowUTC()
			err = tx.QueryRowContext(ctx, `
				INSERT INTO plan_actions(reference, title, description, incident_id, status, created_by, updated_by, created_at, updated_at)
				VALUES(?,?,?,?,?,?,?,?,?) RETURNING id`,
				ref, pa.Title, pa.Description, nullableID(pa.IncidentID), string(pa.Status), nullableID(pa.CreatedBy), nullableID(pa.UpdatedBy), now, now).Scan(&pa.ID)
			if err != nil {
				return fmt.Errorf("insert plan action: %w", scanErr(err))
			}
			pa.Reference = ref
			pa.CreatedAt, pa.UpdatedAt = now, now
			return nil
		})
		if err == nil || !errors.Is(err, apperr.ErrUniqueViolation) {
			break
		}
	}
	if err != nil {
		pa.ID = 0
		pa.Reference = ""
		return 0, err
	}
	return pa.ID, nil
}

func (s *planActionsStore) GetPlanAction(ctx context.Context, id int64) (*PlanAction, error) {
	pa, err := scanPlanAction(s.db.QueryRowContext(ctx, `SELECT `+planActionColumns+` FROM plan_actions WHERE id=? AND deleted=FALSE`, id))
	if err != nil {
		return nil, scanErr(err)
	}
	return pa, nil
}

func (s *planActionsStore) ListPlanActions(ctx context.Context, filter PlanActionFilter) ([]PlanAction, int, error) {
	clauses := []string{"deleted=FALSE"}
	var args []any
	if q := strings.TrimSpace(filter.Search); q != "" {
		clauses = append(clauses, "(LOWER(reference) LIKE ? OR LOWER(title) LIKE ?)")
		p := likePattern(q)
		args = append(args, p, p)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(filter.Status))
	}
	if filter.IncidentID > 0 {
		clauses = append(clauses, "incident_id=?")
		args = append(args, filter.IncidentID)
	}
	if filter.CreatedBy > 0 {
		clauses = append(clauses, "created_by=?")
		args = append(args, filter.CreatedBy)
	}
	where := " WHERE " + strings.Join(clauses, " AND ")
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_actions`+where, args...).Scan(&total); err != nil {
		return nil, 0, scanErr(err)
	}
	col, ok := planActionSortColumns[filter.Sort]
	if !ok {
		col = "created_at"
		filter.Desc = true
	}
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	query := `SELECT ` + planActionColumns + ` FROM plan_actions` + where + ` ORDER BY ` + col + ` ` + dir + `, id ` + dir
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []PlanAction
	for rows.Next() {
		pa, err := scanPlanAction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *pa)
	}
	return out, total, rows.Err()
}

func (s *planActionsStore) TransitionPlanAction(ctx context.Context, id int64, from, to workflow.Status, updatedBy *int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plan_actions SET status=?, updated_by=COALESCE(?, updated_by), updated_at=?
		WHERE id=? AND status=? AND deleted=FALSE`,
		string(to), nullableID(updatedBy), utils.NowUTC(), id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrConflict
	}
	return nil
}

func (s *planActionsStore) SoftDeletePlanAction(ctx context.Context, id int64) error {
	return s.deleter.Delete(ctx, "plan_actions", id)
}
