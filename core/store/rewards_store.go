package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"worksafety/core/utils"
)

type BonusType string

const (
	BonusWeekly    BonusType = "weekly"
	BonusMonthly   BonusType = "monthly"
	BonusQuarterly BonusType = "quarterly"
)

func (b BonusType) Valid() bool {
	return b == BonusWeekly || b == BonusMonthly || b == BonusQuarterly
}

type UserProfile struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	TotalPoints      int        `json:"total_points"`
	LastIncidentDate *time.Time `json:"last_incident_date,omitempty"`
	AllowedSiteIDs   []int64    `json:"allowed_site_ids"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Bonus rows are append-only.
type Bonus struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      BonusType `json:"bonus_type"`
	Points    int       `json:"points"`
	Period    string    `json:"period"`
	RunID     string    `json:"run_id"`
	AwardedAt time.Time `json:"awarded_at"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        int64  `json:"user_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	IncidentCount int    `json:"incident_count"`
	BonusTotal    int    `json:"bonus_total"`
	TotalPoints   int    `json:"total_points"`
}

type RewardsStore interface {
	// AddPoints upserts the profile and returns the new total. A non-nil activityAt
	// replaces last_incident_date.
	AddPoints(ctx context.Context, q Querier, userID int64, points int, activityAt *time.Time) (int, error)
	GetProfile(ctx context.Context, userID int64) (*UserProfile, error)
	ProfilesActiveSince(ctx context.Context, since time.Time) ([]UserProfile, error)
	AwardBonus(ctx context.Context, b *Bonus) (total int, awarded bool, err error)
	ListBonuses(ctx context.Context, userID int64) ([]Bonus, error)
	GetBonus(ctx context.Context, id int64) (*Bonus, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	AllowedSites(ctx context.Context, userID int64) ([]int64, error)
	AddAllowedSite(ctx context.Context, userID, siteID int64) error
	RemoveAllowedSite(ctx context.Context, userID, siteID int64) error
}

// Querier is satisfied by both *DB and *Tx.
type Querier = querier

type rewardsStore struct {
	db *DB
}

func NewRewardsStore(db *DB) RewardsStore {
	return &rewardsStore{db: db}
}

func (s *rewardsStore) AddPoints(ctx context.Context, q Querier, userID int64, points int, activityAt *time.Time) (int, error) {
	if q == nil {
		q = s.db
	}
	now := utils.NowUTC()
	var total int
	err := q.QueryRowContext(ctx, `
		INSERT INTO user_profiles(user_id, total_points, last_incident_date, created_at, updated_at)
		VALUES(?,?,?,?,?)
		ON CONFLICT (user_id) DO UPDATE SET
			total_points = user_profiles.total_points + excluded.total_points,
			last_incident_date = COALESCE(excluded.last_incident_date, user_profiles.last_incident_date),
			updated_at = excluded.updated_at
		RETURNING total_points`,
		userID, points, nullableTime(activityAt), now, now).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("add points: %w", scanErr(err))
	}
	return total, nil
}

func (s *rewardsStore) GetProfile(ctx context.Context, userID int64) (*UserProfile, error) {
	var p UserProfile
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_points, last_incident_date, created_at, updated_at
		FROM user_profiles WHERE user_id=?`, userID).
		Scan(&p.ID, &p.UserID, &p.TotalPoints, &last, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, scanErr(err)
	}
	p.LastIncidentDate = timePtr(last)
	sites, err := s.AllowedSites(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.AllowedSiteIDs = sites
	return &p, nil
}

func (s *rewardsStore) ProfilesActiveSince(ctx context.Context, since time.Time) ([]UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, total_points, last_incident_date, created_at, updated_at
		FROM user_profiles WHERE last_incident_date >= ? ORDER BY user_id`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserProfile
	for rows.Next() {
		var p UserProfile
		var last sql.NullTime
		if err := rows.Scan(&p.ID, &p.UserID, &p.TotalPoints, &last, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.LastIncidentDate = timePtr(last)
		out = append(out, p)
	}
	return out, rows.Err()
}

// AwardBonus appends b and credits the profile unless a bonus of the same type
// already exists for the user in b.Period.
func (s *rewardsStore) AwardBonus(ctx context.Context, b *Bonus) (int, bool, error) {
	var total int
	awarded := false
	err := s.db.InTx(ctx, false, func(tx *Tx) error {
		if b.AwardedAt.IsZero() {
			b.AwardedAt = utils.NowUTC()
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO bonuses(user_id, bonus_type, points, period, run_id, awarded_at)
			VALUES(?,?,?,?,?,?)
			ON CONFLICT (user_id, bonus_type, period) DO NOTHING
			RETURNING id`,
			b.UserID, string(b.Type), b.Points, b.Period, b.RunID, b.AwardedAt.UTC()).Scan(&b.ID)
		if err != nil {
			if err = scanErr(err); isNotFound(err) {
				return nil
			}
			return err
		}
		awarded = true
		total, err = s.AddPoints(ctx, tx, b.UserID, b.Points, nil)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return total, awarded, nil
}

func (s *rewardsStore) ListBonuses(ctx context.Context, userID int64) ([]Bonus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, bonus_type, points, period, run_id, awarded_at
		FROM bonuses WHERE user_id=? ORDER BY awarded_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bonus
	for rows.Next() {
		var b Bonus
		var typ string
		if err := rows.Scan(&b.ID, &b.UserID, &typ, &b.Points, &b.Period, &b.RunID, &b.AwardedAt); err != nil {
			return nil, err
		}
		b.Type = BonusType(typ)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *rewardsStore) GetBonus(ctx context.Context, id int64) (*Bonus, error) {
	var b Bonus
	var typ string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, bonus_type, points, period, run_id, awarded_at
		FROM bonuses WHERE id=?`, id).Scan(&b.ID, &b.UserID, &typ, &b.Points, &b.Period, &b.RunID, &b.AwardedAt)
	if err != nil {
		return nil, scanErr(err)
	}
	b.Type = BonusType(typ)
	return &b, nil
}

func (s *rewardsStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.user_id, u.first_name, u.last_name, u.email, p.total_points,
			(SELECT COUNT(*) FROM incidents i WHERE i.created_by = p.user_id AND i.deleted=FALSE) AS incident_count,
			(SELECT COALESCE(SUM(b.points), 0) FROM bonuses b WHERE b.user_id = p.user_id) AS bonus_total
		FROM user_profiles p
		JOIN users u ON u.id = p.user_id
		WHERE u.deleted=FALSE
		ORDER BY p.total_points DESC, p.user_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.FirstName, &e.LastName, &e.Email, &e.TotalPoints, &e.IncidentCount, &e.BonusTotal); err != nil {
			return nil, err
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *rewardsStore) AllowedSites(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.site_id FROM profile_allowed_sites a
		JOIN sites st ON st.id = a.site_id
		WHERE a.user_id=? AND st.deleted=FALSE ORDER BY a.site_id`, userID)
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

func (s *rewardsStore) AddAllowedSite(ctx context.Context, userID, siteID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_allowed_sites(user_id, site_id) VALUES(?,?)
		ON CONFLICT (user_id, site_id) DO NOTHING`, userID, siteID)
	return err
}

func (s *rewardsStore) RemoveAllowedSite(ctx context.Context, userID, siteID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profile_allowed_sites WHERE user_id=? AND site_id=?`, userID, siteID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errNotFound()
	}
	return nil
}
