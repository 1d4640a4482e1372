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

type IncidentType string

const (
	IncidentTypeNearMiss    IncidentType = "PA"
	IncidentTypeObservation IncidentType = "OSE"
)

func (t IncidentType) Valid() bool {
	return t == IncidentTypeNearMiss || t == IncidentTypeObservation
}

type Incident struct {
	ID                int64           `json:"id"`
	Reference         string          `json:"reference"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	LocationText      string          `json:"location_text"`
	Comment           string          `json:"comment"`
	Status            workflow.Status `json:"status"`
	Type              IncidentType    `json:"incident_type"`
	SiteID            *int64          `json:"site_id,omitempty"`
	LocationID        *int64          `json:"location_id,omitempty"`
	CreatedBy         *int64          `json:"created_by,omitempty"`
	UpdatedBy         *int64          `json:"updated_by,omitempty"`
	AssignedTo        *int64          `json:"assigned_to,omitempty"`
	Photo             string          `json:"photo,omitempty"`
	PotentialInjury   *bool           `json:"potential_injury,omitempty"`
	PrincipalCause    string          `json:"principal_cause,omitempty"`
	ConsequencePA     string          `json:"consequence_pa,omitempty"`
	SolutionPA        string          `json:"solution_pa,omitempty"`
	ConsequenceOSE    string          `json:"consequence_ose,omitempty"`
	SolutionOSE       string          `json:"solution_ose,omitempty"`
	CorrectiveAction  *bool           `json:"corrective_action,omitempty"`
	CorrectivePhoto   string          `json:"corrective_photo,omitempty"`
	CorrectiveComment string          `json:"corrective_comment,omitempty"`
	ReportDate        time.Time       `json:"report_date"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Deleted           bool            `json:"deleted,omitempty"`
	DeletedAt         *time.Time      `json:"deleted_at,omitempty"`
}

type IncidentFilter struct {
	Search         string
	Type           IncidentType
	Status         workflow.Status
	SiteID         int64
	CreatedBy      int64
	// VisibleTo limits rows to those created by or assigned to the user.
	VisibleTo      int64
	ReportedFrom   *time.Time
	ReportedTo     *time.Time
	Sort           string
	Desc           bool
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// TxHook runs inside the creation transaction after the row is inserted.
type TxHook func(ctx context.Context, tx *Tx, inc *Incident) error

type IncidentsStore interface {
	CreateIncident(ctx context.Context, inc *Incident, hooks ...TxHook) (int64, error)
	UpdateIncidentDetails(ctx context.Context, inc *Incident) error
	TransitionIncident(ctx context.Context, id int64, from, to workflow.Status, updatedBy *int64) error
	AssignIncident(ctx context.Context, id int64, assignee *int64, updatedBy int64) error
	GetIncident(ctx context.Context, id int64) (*Incident, error)
	GetIncidentUnscoped(ctx context.Context, id int64) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, int, error)
	CountIncidentsByStatus(ctx context.Context, filter IncidentFilter) (map[workflow.Status]int, error)
	SoftDeleteIncident(ctx context.Context, id int64) error
	RestoreIncident(ctx context.Context, id int64) error
}

const maxReferenceAttempts = 3

type incidentsStore struct {
	db      *DB
	prefix  string
	deleter *SoftDeleter
}

func NewIncidentsStore(db *DB, refPrefix string) IncidentsStore {
	if strings.TrimSpace(refPrefix) == "" {
		refPrefix = "INC"
	}
	return &incidentsStore{db: db, prefix: refPrefix, deleter: NewSoftDeleter(db)}
}

const incidentColumns = `id, reference, name, description, location_text, comment, status, incident_type, site_id, location_id,
	created_by, updated_by, assigned_to, photo, potential_injury, principal_cause, consequence_pa, solution_pa,
	consequence_ose, solution_ose, corrective_action, corrective_photo, corrective_comment, report_date, updated_at, deleted, deleted_at`

var incidentSortColumns = map[string]string{
	"reference":   "reference",
	"name":        "name",
	"status":      "status",
	"type":        "incident_type",
	"report_date": "report_date",
	"updated_at":  "updated_at",
}

func scanIncident(row interface{ Scan(...any) error }) (*Incident, error) {
	var inc Incident
	var status, typ string
	var siteID, locationID, createdBy, updatedBy, assignedTo sql.NullInt64
	var potentialInjury, correctiveAction sql.NullBool
	var deletedAt sql.NullTime
	if err := row.Scan(&inc.ID, &inc.Reference, &inc.Name, &inc.Description, &inc.LocationText, &inc.Comment, &status, &typ,
		&siteID, &locationID, &createdBy, &updatedBy, &assignedTo, &inc.Photo, &potentialInjury, &inc.PrincipalCause,
		&inc.ConsequencePA, &inc.SolutionPA, &inc.ConsequenceOSE, &inc.SolutionOSE, &correctiveAction, &inc.CorrectivePhoto,
		&inc.CorrectiveComment, &inc.ReportDate, &inc.UpdatedAt, &inc.Deleted, &deletedAt); err != nil {
		return nil, err
	}
	inc.Status = workflow.Status(status)
	inc.Type = IncidentType(typ)
	inc.SiteID = idPtr(siteID)
	inc.LocationID = idPtr(locationID)
	inc.CreatedBy = idPtr(createdBy)
	inc.UpdatedBy = idPtr(updatedBy)
	inc.AssignedTo = idPtr(assignedTo)
	inc.PotentialInjury = boolPtr(potentialInjury)
	inc.CorrectiveAction = boolPtr(correctiveAction)
	inc.DeletedAt = timePtr(deletedAt)
	return &inc, nil
}

// CreateIncident assigns the next reference, inserts the row and runs hooks in one transaction.
// A reference collision rolls everything back and retries with a fresh number.
func (s *incidentsStore) CreateIncident(ctx context.Context, inc *Incident, hooks ...TxHook) (int64, error) {
	if inc.Status == "" {
		inc.Status = workflow.StatusPending
	}
	var err error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		err = s.db.InTx(ctx, true, func(tx *Tx) error {
			return s.insertIncident(ctx, tx, inc, hooks)
		})
		if err == nil || !errors.Is(err, apperr.ErrUniqueViolation) {
			break
		}
	}
	if err != nil {
		inc.ID = 0
		inc.Reference = ""
		return 0, err
	}
	return inc.ID, nil
}

// lockPlacement checks, inside tx, that the incident's site and location are still live.
func lockPlacement(ctx context.Context, tx *Tx, inc *Incident) error {
	if inc.SiteID != nil {
		if err := requireLive(ctx, tx, "sites", *inc.SiteID, "site_id", "incidents.siteNotFound", "site does not exist"); err != nil {
			return err
		}
	}
	if inc.LocationID != nil {
		var siteID sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT site_id FROM locations WHERE id=? AND deleted=FALSE`+rowLock(tx.Dialect(), "SHARE"), *inc.LocationID).Scan(&siteID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return scanErr(err)
		}
		if err != nil || inc.SiteID == nil || !siteID.Valid || siteID.Int64 != *inc.SiteID {
			return apperr.Invalid("location_id", "incidents.locationSite", "location does not belong to the selected site")
		}
	}
	return nil
}

func (s *incidentsStore) insertIncident(ctx context.Context, tx *Tx, inc *Incident, hooks []TxHook) error {
	if err := lockPlacement(ctx, tx, inc); err != nil {
		return err
	}
	ref, err := nextReference(ctx, tx, "incidents", s.prefix)
	if err != nil {
		return err
	}
	now := utils.NowUTC()
	inc.ReportDate = now
	err = tx.QueryRowContext(ctx, `
		INSERT INTO incidents(reference, name, description, location_text, comment, status, incident_type, site_id, location_id,
			created_by, updated_by, assigned_to, photo, potential_injury, principal_cause, consequence_pa, solution_pa,
			consequence_ose, solution_ose, corrective_action, corrective_photo, corrective_comment, report_date, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) RETURNING id`,
		ref, inc.Name, inc.Description, inc.LocationText, inc.Comment, string(inc.Status), string(inc.Type),
		nullableID(inc.SiteID), nullableID(inc.LocationID), nullableID(inc.CreatedBy), nullableID(inc.UpdatedBy), nullableID(inc.AssignedTo),
		inc.Photo, nullableBool(inc.PotentialInjury), inc.PrincipalCause, inc.ConsequencePA, inc.SolutionPA,
		inc.ConsequenceOSE, inc.SolutionOSE, nullableBool(inc.CorrectiveAction), inc.CorrectivePhoto, inc.CorrectiveComment,
		inc.ReportDate.UTC(), now).Scan(&inc.ID)
	if err != nil {
		return fmt.Errorf("insert incident: %w", scanErr(err))
	}
	inc.Reference = ref
	inc.UpdatedAt = now
	for _, hook := range hooks {
		if err := hook(ctx, tx, inc); err != nil {
			return err
		}
	}
	return nil
}

func (s *incidentsStore) UpdateIncidentDetails(ctx context.Context, inc *Incident) error {
	return s.db.InTx(ctx, true, func(tx *Tx) error {
		if err := lockPlacement(ctx, tx, inc); err != nil {
			return err
		}
		return s.updateDetails(ctx, tx, inc)
	})
}

func (s *incidentsStore) updateDetails(ctx context.Context, tx *Tx, inc *Incident) error {
	now := utils.NowUTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE incidents SET name=?, description=?, location_text=?, comment=?, incident_type=?, site_id=?, location_id=?,
			updated_by=?, photo=?, potential_injury=?, principal_cause=?, consequence_pa=?, solution_pa=?, consequence_ose=?,
			solution_ose=?, corrective_action=?, corrective_photo=?, corrective_comment=?, updated_at=?
		WHERE id=? AND deleted=FALSE AND status <> ?`,
		inc.Name, inc.Description, inc.LocationText, inc.Comment, string(inc.Type), nullableID(inc.SiteID), nullableID(inc.LocationID),
		nullableID(inc.UpdatedBy), inc.Photo, nullableBool(inc.PotentialInjury), inc.PrincipalCause, inc.ConsequencePA, inc.SolutionPA,
		inc.ConsequenceOSE, inc.SolutionOSE, nullableBool(inc.CorrectiveAction), inc.CorrectivePhoto, inc.CorrectiveComment, now,
		inc.ID, string(workflow.StatusDone))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrConflict
	}
	inc.UpdatedAt = now
	return nil
}

// TransitionIncident moves status from -> to only if the row still holds from.
func (s *incidentsStore) TransitionIncident(ctx context.Context, id int64, from, to workflow.Status, updatedBy *int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET status=?, updated_by=COALESCE(?, updated_by), updated_at=?
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

// AssignIncident changes the assignee while the incident is still pending.
func (s *incidentsStore) AssignIncident(ctx context.Context, id int64, assignee *int64, updatedBy int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET assigned_to=?, updated_by=?, updated_at=?
		WHERE id=? AND status=? AND deleted=FALSE`,
		nullableID(assignee), updatedBy, utils.NowUTC(), id, string(workflow.StatusPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrConflict
	}
	return nil
}

func (s *incidentsStore) GetIncident(ctx context.Context, id int64) (*Incident, error) {
	inc, err := scanIncident(s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id=? AND deleted=FALSE`, id))
	if err != nil {
		return nil, scanErr(err)
	}
	return inc, nil
}

// GetIncidentUnscoped also returns soft-deleted rows.
func (s *incidentsStore) GetIncidentUnscoped(ctx context.Context, id int64) (*Incident, error) {
	inc, err := scanIncident(s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id=?`, id))
	if err != nil {
		return nil, scanErr(err)
	}
	return inc, nil
}

func incidentWhere(filter IncidentFilter) (string, []any) {
	var clauses []string
	var args []any
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted=FALSE")
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		clauses = append(clauses, "(LOWER(reference) LIKE ? OR LOWER(name) LIKE ?)")
		p := likePattern(q)
		args = append(args, p, p)
	}
	if filter.Type != "" {
		clauses = append(clauses, "incident_type=?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(filter.Status))
	}
	if filter.SiteID > 0 {
		clauses = append(clauses, "site_id=?")
		args = append(args, filter.SiteID)
	}
	if filter.CreatedBy > 0 {
		clauses = append(clauses, "created_by=?")
		args = append(args, filter.CreatedBy)
	}
	if filter.VisibleTo > 0 {
		clauses = append(clauses, "(created_by=? OR assigned_to=?)")
		args = append(args, filter.VisibleTo, filter.VisibleTo)
	}
	if filter.ReportedFrom != nil {
		clauses = append(clauses, "report_date >= ?")
		args = append(args, filter.ReportedFrom.UTC())
	}
	if filter.ReportedTo != nil {
		clauses = append(clauses, "report_date < ?")
		args = append(args, filter.ReportedTo.UTC())
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, int, error) {
	where, args := incidentWhere(filter)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`+where, args...).Scan(&total); err != nil {
		return nil, 0, scanErr(err)
	}
	col, ok := incidentSortColumns[filter.Sort]
	if !ok {
		col = "report_date"
		filter.Desc = true
	}
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	query := `SELECT ` + incidentColumns + ` FROM incidents` + where + ` ORDER BY ` + col + ` ` + dir + `, id ` + dir
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inc)
	}
	return out, total, rows.Err()
}

func (s *incidentsStore) CountIncidentsByStatus(ctx context.Context, filter IncidentFilter) (map[workflow.Status]int, error) {
	where, args := incidentWhere(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM incidents`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[workflow.Status]int{}
	for _, st := range workflow.Statuses() {
		out[st] = 0
	}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[workflow.Status(st)] = n
	}
	return out, rows.Err()
}

func (s *incidentsStore) SoftDeleteIncident(ctx context.Context, id int64) error {
	return s.deleter.Delete(ctx, "incidents", id)
}

func (s *incidentsStore) RestoreIncident(ctx context.Context, id int64) error {
	return s.deleter.Restore(ctx, "incidents", id)
}
