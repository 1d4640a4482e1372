package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"worksafety/core/rbac"
	"worksafety/core/utils"
)

type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	Role         string     `json:"role"`
	IsInternal   bool       `json:"is_internal"`
	IsSuperuser  bool       `json:"is_superuser"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Deleted      bool       `json:"deleted,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Roles returns the policy roles for u; superusers also carry admin.
func (u *User) Roles() []string {
	if u == nil {
		return nil
	}
	roles := []string{u.Role}
	if u.IsSuperuser {
		roles = append(roles, rbac.RoleAdmin)
	}
	return roles
}

type UsersStore interface {
	Create(ctx context.Context, u *User) (int64, error)
	Get(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, includeDeleted bool) ([]User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
	SoftDelete(ctx context.Context, id int64) error
}

type usersStore struct {
	db      *DB
	deleter *SoftDeleter
}

func NewUsersStore(db *DB) UsersStore {
	return &usersStore{db: db, deleter: NewSoftDeleter(db)}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, role, is_internal, is_superuser, active, created_at, updated_at, deleted, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var deletedAt sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Role,
		&u.IsInternal, &u.IsSuperuser, &u.Active, &u.CreatedAt, &u.UpdatedAt, &u.Deleted, &deletedAt); err != nil {
		return nil, err
	}
	u.DeletedAt = timePtr(deletedAt)
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *usersStore) Create(ctx context.Context, u *User) (int64, error) {
	now := utils.NowUTC()
	u.Email = normalizeEmail(u.Email)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users(email, password_hash, first_name, last_name, phone, role, is_internal, is_superuser, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?) RETURNING id`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Role, u.IsInternal, u.IsSuperuser, u.Active, now, now).Scan(&u.ID)
	if err != nil {
		return 0, scanErr(err)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return u.ID, nil
}

func (s *usersStore) Get(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=? AND deleted=FALSE`, id))
	if err != nil {
		return nil, scanErr(err)
	}
	return u, nil
}

func (s *usersStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=? AND deleted=FALSE`, normalizeEmail(email)))
	if err != nil {
		return nil, scanErr(err)
	}
	return u, nil
}

func (s *usersStore) List(ctx context.Context, includeDeleted bool) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if !includeDeleted {
		query += ` WHERE deleted=FALSE`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *usersStore) SetPassword(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=? WHERE id=? AND deleted=FALSE`, hash, utils.NowUTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound()
	}
	return nil
}

func (s *usersStore) SoftDelete(ctx context.Context, id int64) error {
	return s.deleter.Delete(ctx, "users", id)
}
