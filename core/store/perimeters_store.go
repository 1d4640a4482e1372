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
)

type Perimeter struct {
	ID           int64      `json:"id"`
	ExternalID   string     `json:"external_id"`
	Name         string     `json:"name"`
	DisplayOrder int        `json:"display_order"`
	Description  string     `json:"description"`
	ParentID     *int64     `json:"parent_id,omitempty"`
	SiteID       *int64     `json:"site_id,omitempty"`
	CategoryID   *int64     `json:"category_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Deleted      bool       `json:"deleted,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

type PerimeterCategory struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Deleted     bool       `json:"deleted,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

type UserPerimeterRel struct {
	ID                     int64     `json:"id"`
	UserID                 int64     `json:"user_id"`
	PerimeterID            int64     `json:"perimeter_id"`
	EmailNotifyNewIncident bool      `json:"email_notify_new_incident"`
	EmailNotifyNewTicket   bool      `json:"email_notify_new_ticket"`
	WebNotifications       bool      `json:"web_notifications"`
	AssignTickets          bool      `json:"assign_tickets"`
	CreatedAt              time.Time `json:"created_at"`
}

type PerimeterFilter struct {
	// SiteIDs keeps perimeters on any of the sites plus site-less ones.
	SiteIDs        []int64
	ParentID       *int64
	IncludeDeleted bool
}

type PerimetersStore interface {
	CreatePerimeter(ctx context.Context, p *Perimeter) (int64, error)
	UpdatePerimeter(ctx context.Context, p *Perimeter) error
	GetPerimeter(ctx context.Context, id int64) (*Perimeter, error)
	ListPerimeters(ctx context.Context, filter PerimeterFilter) ([]Perimeter, error)
	ListChildren(ctx context.Context, parentID int64) ([]Perimeter, error)
	SoftDeletePerimeter(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *PerimeterCategory) (int64, error)
	GetCategory(ctx context.Context, id int64) (*PerimeterCategory, error)
	ListCategories(ctx context.Context) ([]PerimeterCategory, error)
	SoftDeleteCategory(ctx context.Context, id int64) error

	AddUserPerimeter(ctx context.Context, rel *UserPerimeterRel) (int64, error)
	UpdateUserPerimeter(ctx context.Context, rel *UserPerimeterRel) error
	RemoveUserPerimeter(ctx context.Context, userID, perimeterID int64) error
	ListPerimeterUsers(ctx context.Context, perimeterID int64) ([]UserPerimeterRel, error)
	AssignableUser(ctx context.Context, perimeterID int64) (*UserPerimeterRel, error)
	WebSubscribers(ctx context.Context, siteID *int64) ([]int64, error)
}

type perimetersStore struct {
	db      *DB
	deleter *SoftDeleter
}

func NewPerimetersStore(db *DB) PerimetersStore {
	return &perimetersStore{db: db, deleter: NewSoftDeleter(db)}
}

const perimeterColumns = `id, external_id, name, display_order, description, parent_id, site_id, category_id, created_at, updated_at, deleted, deleted_at`

func scanPerimeter(row interface{ Scan(...any) error }) (*Perimeter, error) {
	var p Perimeter
	var parentID, siteID, categoryID sql.NullInt64
	var deletedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.ExternalID, &p.Name, &p.DisplayOrder, &p.Description, &parentID, &siteID, &categoryID,
		&p.CreatedAt, &p.UpdatedAt, &p.Deleted, &deletedAt); err != nil {
		return nil, err
	}
	p.ParentID = idPtr(parentID)
	p.SiteID = idPtr(siteID)
	p.CategoryID = idPtr(categoryID)
	p.DeletedAt = timePtr(deletedAt)
	return &p, nil
}

func (s *perimetersStore) CreatePerimeter(ctx context.Context, p *Perimeter) (int64, error) {
	now := utils.NowUTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO perimeters(external_id, name, display_order, description, parent_id, site_id, category_id, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?) RETURNING id`,
		p.ExternalID, p.Name, p.DisplayOrder, p.Description, nullableID(p.ParentID), nullableID(p.SiteID), nullableID(p.CategoryID), now, now).Scan(&p.ID)
	if err != nil {
		return 0, perimeterUniqueErr(scanErr(err))
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return p.ID, nil
}

func (s *perimetersStore) UpdatePerimeter(ctx context.Context, p *Perimeter) error {
	now := utils.NowUTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE perimeters SET external_id=?, name=?, display_order=?, description=?, parent_id=?, site_id=?, category_id=?, updated_at=?
		WHERE id=? AND deleted=FALSE`,
		p.ExternalID, p.Name, p.DisplayOrder, p.Description, nullableID(p.ParentID), nullableID(p.SiteID), nullableID(p.CategoryID), now, p.ID)
	if err != nil {
		return perimeterUniqueErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound()
	}
	p.UpdatedAt = now
	return nil
}

func perimeterUniqueErr(err error) error {
	if !errors.Is(err, apperr.ErrUniqueViolation) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "display_order") {
		return apperr.Invalid("display_order", "perimeters.displayOrderTaken", "display order already used on this site")
	}
	return apperr.Invalid("external_id", "perimeters.externalIDTaken", "external reference already exists")
}

func (s *perimetersStore) GetPerimeter(ctx context.Context, id int64) (*Perimeter, error) {
	p, err := scanPerimeter(s.db.QueryRowContext(ctx, `SELECT `+perimeterColumns+` FROM perimeters WHERE id=? AND deleted=FALSE`, id))
	if err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}

func (s *perimetersStore) ListPerimeters(ctx context.Context, filter PerimeterFilter) ([]Perimeter, error) {
	var clauses []string
	var args []any
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted=FALSE")
	}
	if len(filter.SiteIDs) > 0 {
		clauses = append(clauses, "(site_id IN ("+placeholders(len(filter.SiteIDs))+") OR site_id IS NULL)")
		args = append(args, int64Args(filter.SiteIDs)...)
	}
	if filter.ParentID != nil {
		clauses = append(clauses, "parent_id=?")
		args = append(args, *filter.ParentID)
	}
	query := `SELECT ` + perimeterColumns + ` FROM perimeters`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	return s.queryPerimeters(ctx, query+` ORDER BY display_order, id`, args...)
}

func (s *perimetersStore) ListChildren(ctx context.Context, parentID int64) ([]Perimeter, error) {
	return s.queryPerimeters(ctx, `SELECT `+perimeterColumns+` FROM perimeters WHERE parent_id=? AND deleted=FALSE ORDER BY display_order, id`, parentID)
}

func (s *perimetersStore) queryPerimeters(ctx context.Context, query string, args ...any) ([]Perimeter, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Perimeter
	for rows.Next() {
		p, err := scanPerimeter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *perimetersStore) SoftDeletePerimeter(ctx context.Context, id int64) error {
	return s.deleter.Delete(ctx, "perimeters", id)
}

func (s *perimetersStore) CreateCategory(ctx context.Context, c *PerimeterCategory) (int64, error) {
	now := utils.NowUTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO perimeter_categories(name, description, created_at, updated_at)
		VALUES(?,?,?,?) RETURNING id`, c.Name, c.Description, now, now).Scan(&c.ID)
	if err != nil {
		return 0, scanErr(err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return c.ID, nil
}

func (s *perimetersStore) GetCategory(ctx context.Context, id int64) (*PerimeterCategory, error) {
	var c PerimeterCategory
	var deletedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at, deleted, deleted_at
		FROM perimeter_categories WHERE id=? AND deleted=FALSE`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt, &c.Deleted, &deletedAt)
	if err != nil {
		return nil, scanErr(err)
	}
	c.DeletedAt = timePtr(deletedAt)
	return &c, nil
}

func (s *perimetersStore) ListCategories(ctx context.Context) ([]PerimeterCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at, deleted, deleted_at
		FROM perimeter_categories WHERE deleted=FALSE ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PerimeterCategory
	for rows.Next() {
		var c PerimeterCategory
		var deletedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt, &c.Deleted, &deletedAt); err != nil {
			return nil, err
		}
		c.DeletedAt = timePtr(deletedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *perimetersStore) SoftDeleteCategory(ctx context.Context, id int64) error {
	return s.deleter.Delete(ctx, "perimeter_categories", id)
}

// AddUserPerimeter inserts the relation. A second assignable user on the same perimeter is
// rejected by the partial unique index and reported as a ValidationError naming the holder.
func (s *perimetersStore) AddUserPerimeter(ctx context.Context, rel *UserPerimeterRel) (int64, error) {
	now := utils.NowUTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_perimeter_rels(user_id, perimeter_id, email_notify_new_incident, email_notify_new_ticket, web_notifications, assign_tickets, created_at)
		VALUES(?,?,?,?,?,?,?) RETURNING id`,
		rel.UserID, rel.PerimeterID, rel.EmailNotifyNewIncident, rel.EmailNotifyNewTicket, rel.WebNotifications, rel.AssignTickets, now).Scan(&rel.ID)
	if err != nil {
		return 0, s.relUniqueErr(ctx, scanErr(err), rel)
	}
	rel.CreatedAt = now
	return rel.ID, nil
}

func (s *perimetersStore) UpdateUserPerimeter(ctx context.Context, rel *UserPerimeterRel) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_perimeter_rels SET email_notify_new_incident=?, email_notify_new_ticket=?, web_notifications=?, assign_tickets=?
		WHERE user_id=? AND perimeter_id=?`,
		rel.EmailNotifyNewIncident, rel.EmailNotifyNewTicket, rel.WebNotifications, rel.AssignTickets, rel.UserID, rel.PerimeterID)
	if err != nil {
		return s.relUniqueErr(ctx, err, rel)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound()
	}
	return nil
}

func (s *perimetersStore) relUniqueErr(ctx context.Context, err error, rel *UserPerimeterRel) error {
	if !errors.Is(err, apperr.ErrUniqueViolation) {
		return err
	}
	if rel.AssignTickets {
		if holder, herr := s.AssignableUser(ctx, rel.PerimeterID); herr == nil && holder.UserID != rel.UserID {
			return apperr.Invalid("assign_tickets", "perimeters.assignableTaken",
				"user %d is already the assignable user of this perimeter", holder.UserID)
		}
	}
	return apperr.Invalid("user_id", "perimeters.relationExists", "user is already related to this perimeter")
}

func (s *perimetersStore) RemoveUserPerimeter(ctx context.Context, userID, perimeterID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_perimeter_rels WHERE user_id=? AND perimeter_id=?`, userID, perimeterID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound()
	}
	return nil
}

const relColumns = `id, user_id, perimeter_id, email_notify_new_incident, email_notify_new_ticket, web_notifications, assign_tickets, created_at`

func scanRel(row interface{ Scan(...any) error }) (*UserPerimeterRel, error) {
	var r UserPerimeterRel
	if err := row.Scan(&r.ID, &r.UserID, &r.PerimeterID, &r.EmailNotifyNewIncident, &r.EmailNotifyNewTicket, &r.WebNotifications, &r.AssignTickets, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *perimetersStore) ListPerimeterUsers(ctx context.Context, perimeterID int64) ([]UserPerimeterRel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+relColumns+` FROM user_perimeter_rels WHERE perimeter_id=? ORDER BY id`, perimeterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserPerimeterRel
	for rows.Next() {
		r, err := scanRel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *perimetersStore) AssignableUser(ctx context.Context, perimeterID int64) (*UserPerimeterRel, error) {
	r, err := scanRel(s.db.QueryRowContext(ctx, `SELECT `+relColumns+` FROM user_perimeter_rels WHERE perimeter_id=? AND assign_tickets=TRUE`, perimeterID))
	if err != nil {
		return nil, scanErr(err)
	}
	return r, nil
}

// WebSubscribers lists users wanting web notifications for perimeters of siteID and for
// site-less perimeters.
func (s *perimetersStore) WebSubscribers(ctx context.Context, siteID *int64) ([]int64, error) {
	query := `
		SELECT DISTINCT r.user_id FROM user_perimeter_rels r
		JOIN perimeters p ON p.id = r.perimeter_id
		JOIN users u ON u.id = r.user_id
		WHERE r.web_notifications=TRUE AND p.deleted=FALSE AND u.deleted=FALSE AND u.active=TRUE AND %s
		ORDER BY r.user_id`
	var rows *sql.Rows
	var err error
	if siteID != nil {
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(query, "(p.site_id=? OR p.site_id IS NULL)"), *siteID)
	} else {
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(query, "p.site_id IS NULL"))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
