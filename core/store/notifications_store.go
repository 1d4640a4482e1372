package store

import (
	"context"
	"database/sql"
	"time"

	"worksafety/core/utils"
)

type Notification struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	RelatedKind string     `json:"related_kind,omitempty"`
	RelatedID   *int64     `json:"related_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

type NotificationsStore interface {
	CreateNotification(ctx context.Context, n *Notification) (int64, error)
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type notificationsStore struct {
	db *DB
}

func NewNotificationsStore(db *DB) NotificationsStore {
	return &notificationsStore{db: db}
}

func (s *notificationsStore) CreateNotification(ctx context.Context, n *Notification) (int64, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = utils.NowUTC()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications(user_id, title, message, related_kind, related_id, created_at)
		VALUES(?,?,?,?,?,?) RETURNING id`,
		n.UserID, n.Title, n.Message, n.RelatedKind, nullableID(n.RelatedID), n.CreatedAt.UTC()).Scan(&n.ID)
	if err != nil {
		return 0, scanErr(err)
	}
	return n.ID, nil
}

// ListNotifications returns unread notifications first, newest first within each group.
func (s *notificationsStore) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	query := `SELECT id, user_id, title, message, related_kind, related_id, created_at, read_at FROM notifications WHERE user_id=?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY CASE WHEN read_at IS NULL THEN 0 ELSE 1 END, created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var n Notification
		var relatedID sql.NullInt64
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.RelatedKind, &relatedID, &n.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		n.RelatedID = idPtr(relatedID)
		n.ReadAt = timePtr(readAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *notificationsStore) MarkRead(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read_at=? WHERE id=? AND user_id=? AND read_at IS NULL`, utils.NowUTC(), id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound()
	}
	return nil
}

func (s *notificationsStore) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read_at=? WHERE user_id=? AND read_at IS NULL`, utils.NowUTC(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *notificationsStore) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=? AND read_at IS NULL`, userID).Scan(&n); err != nil {
		return 0, scanErr(err)
	}
	return n, nil
}
