package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"worksafety/core/utils"
)

type Company struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	City      string     `json:"city"`
	LegalForm string     `json:"legal_form"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Deleted   bool       `json:"deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type Site struct {
	ID        int64      `json:"id"`
	Reference string     `json:"reference"`
	Name      string     `json:"name"`
	CompanyID int64      `json:"company_id"`
	Region    string     `json:"region"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	City      string     `json:"city"`
	Address   string     `json:"address"`
	Phone     string     `json:"phone"`
	StampRate float64    `json:"stamp_rate"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Deleted   bool       `json:"deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type Location struct {
	ID          int64      `json:"id"`
	SiteID      int64      `json:"site_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Deleted     bool       `json:"deleted,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

type SiteFilter struct {
	IDs            []int64
	CompanyID      int64
	Search         string
	IncludeDeleted bool
}

type SitesStore interface {
	CreateCompany(ctx context.Context, c *Company) (int64, error)
	GetCompany(ctx context.Context, id int64) (*Company, error)
	ListCompanies(ctx context.Context, includeDeleted bool) ([]Company, error)
	SoftDeleteCompany(ctx context.Context, id int64) error

	CreateSite(ctx context.Context, s *Site) (int64, error)
	UpdateSite(ctx context.Context, s *Site) error
	GetSite(ctx context.Context, id int64) (*Site, error)
	ListSites(ctx context.Context, filter SiteFilter) ([]Site, error)
	SoftDeleteSite(ctx context.Context, id int64) error

	CreateLocation(ctx context.Context, l *Location) (int64, error)
	GetLocation(ctx context.Context, id int64) (*Location, error)
	ListLocations(ctx context.Context, siteID int64) ([]Location, error)
	SoftDeleteLocation(ctx context.Context, id int64) error
}

type sitesStore struct {
	db      *DB
	deleter *SoftDeleter
}

func NewSitesStore(db *DB) SitesStore {
	return &sitesStore{db: db, deleter: NewSoftDeleter(db)}
}

func (s *sitesStore) CreateCompany(ctx context.Context, c *Company) (int64, error) {
	now := utils.NowUTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO companies(name, city, legal_form, created_at, updated_at)
		VALUES(?,?,?,?,?) RETURNING id`,
		c.Name, c.City, c.LegalForm, now, now).Scan(&c.ID)
	if err != nil {
		return 0, scanErr(err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return c.ID, nil
}

func (s *sitesStore) GetCompany(ctx context.Context, id int64) (*Company, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, city, legal_form, created_at, updated_at, deleted, deleted_at
		FROM companies WHERE id=? AND deleted=FALSE`, id)
	var c Company
	var deletedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.City, &c.LegalForm, &c.CreatedAt, &c.UpdatedAt, &c.Deleted, &deletedAt); err != nil {
		return nil, scanErr(err)
	}
	c.DeletedAt = timePtr(deletedAt)
	return &c, nil
}

func (s *sitesStore) ListCompanies(ctx context.Context, includeDeleted bool) ([]Company, error) {
	query := `SELECT id, name, city, legal_form, created_at, updated_at, deleted, deleted_at FROM companies`
	if !includeDeleted {
		query += ` WHERE deleted=FALSE`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		var c Company
		var deletedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.Name, &c.City, &c.LegalForm, &c.CreatedAt, &c.UpdatedAt, &c.Deleted, &deletedAt); err != nil {
			return nil, err
		}
		c.DeletedAt = timePtr(deletedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sitesStore) SoftDeleteCompany(ctx context.Context, id int64) error {
	return s.deleter.Delete(ctx, "companies", id)
}

const siteColumns = `id, reference, name, company_id, region, latitude, longitude, city, address, phone, stamp_rate, active, created_at, updated_at, deleted, deleted_at`

func scanSite(row interface{ Scan(...any) error }) (*Site, error) {
	var st Site
	var deletedAt sql.NullTime
	if err := row.Scan(&st.ID, &st.Reference, &st.Name, &st.CompanyID, &st.Region, &st.Latitude, &st.Longitude,
		&st.City, &st.Address, &st.Phone, &st.StampRate, &st.Active, &st.CreatedAt, &st.UpdatedAt, &st.Deleted, &deletedAt); err != nil {
		return nil, err
	}
	st.DeletedAt = timePtr(deletedAt)
	return &st, nil
}

func (s *sitesStore) CreateSite(ctx context.Context, st *Site) (int64, error) {
	now := utils.NowUTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sites(reference, name, company_id, region, latitude, longitude, city, address, phone, stamp_rate, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?) RETURNING id`,
		st.Reference, st.Name, st.CompanyID, st.Region, st.Latitude, st.Longitude, st.City, st.Address, st.Phone, st.StampRate, st.Active, now, now).Scan(&st.ID)
	if err != nil {
		return 0, scanErr(err)
	}
	st.CreatedAt, st.UpdatedAt = now, now
	return st.ID, nil
}

func (s *sitesStore) UpdateSite(ctx context.Context, st *Site) error {
	now := utils.NowUTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE sites SET reference=?, name=?, company_id=?, region=?, latitude=?, longitude=?, city=?, address=?, phone=?, stamp_rate=?, active=?, updated_at=?
		WHERE id=? AND deleted=FALSE`,
		st.Reference, st.Name, st.CompanyID, st.Region, st.Latitude, st.Longitude, st.City, st.Address, st.Phone, st.StampRate, st.Active, now, st.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound()
	}
	st.UpdatedAt = now
	return nil
}

func (s *sitesStore) GetSite(ctx context.Context, id int64) (*Site, error) {
	st, err := scanSite(s.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id=? AND deleted=FALSE`, id))
	if err != nil {
		return nil, scanErr(err)
	}
	return st, nil
}

func (s *sitesStore) ListSites(ctx context.Context, filter SiteFilter) ([]Site, error) {
	var clauses []string
	var args []any
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted=FALSE")
	}
	if len(filter.IDs) > 0 {
		clauses = append(clauses, "id IN ("+placeholders(len(filter.IDs))+")")
		args = append(args, int64Args(filter.IDs)...)
	}
	if filter.CompanyID > 0 {
		clauses = append(clauses, "company_id=?")
		args = append(args, filter.CompanyID)
	}
	if strings.TrimSpace(filter.Search) != "" {
		clauses = append(clauses, "(LOWER(name) LIKE ? OR LOWER(reference) LIKE ?)")
		p := likePattern(filter.Search)
		args = append(args, p, p)
	}
	query := `SELECT ` + siteColumns + ` FROM sites`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY reference`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Site
	for rows.Next() {
		st, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *sitesStore) SoftDeleteSite(ctx context.Context, id int64) error {
	return s.deleter.Delete(ctx, "sites", id)
}

func (s *sitesStore) CreateLocation(ctx context.Context, l *Location) (int64, error) {
	now := utils.NowUTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO locations(site_id, name, description, created_at, updated_at)
		VALUES(?,?,?,?,?) RETURNING id`, l.SiteID, l.Name, l.Description, now, now).Scan(&l.ID)
	if err != nil {
		return 0, scanErr(err)
	}
	l.CreatedAt, l.UpdatedAt = now, now
	return l.ID, nil
}

func (s *sitesStore) GetLocation(ctx context.Context, id int64) (*Location, error) {
	var l Location
	var deletedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, name, description, created_at, updated_at, deleted, deleted_at
		FROM locations WHERE id=? AND deleted=FALSE`, id).
		Scan(&l.ID, &l.SiteID, &l.Name, &l.Description, &l.CreatedAt, &l.UpdatedAt, &l.Deleted, &deletedAt)
	if err != nil {
		return nil, scanErr(err)
	}
	l.DeletedAt = timePtr(deletedAt)
	return &l, nil
}

func (s *sitesStore) ListLocations(ctx context.Context, siteID int64) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site_id, name, description, created_at, updated_at, deleted, deleted_at
		FROM locations WHERE site_id=? AND deleted=FALSE ORDER BY name, id`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Location
	for rows.Next() {
		var l Location
		var deletedAt sql.NullTime
		if err := rows.Scan(&l.ID, &l.SiteID, &l.Name, &l.Description, &l.CreatedAt, &l.UpdatedAt, &l.Deleted, &deletedAt); err != nil {
			return nil, err
		}
		l.DeletedAt = timePtr(deletedAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *sitesStore) SoftDeleteLocation(ctx context.Context, id int64) error {
	return s.deleter.Delete(ctx, "locations", id)
}
