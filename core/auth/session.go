package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"worksafety/config"
	"worksafety/core/apperr"
	"worksafety/core/store"
	"worksafety/core/utils"
)

type contextKey string

// SessionContextKey carries the *store.SessionRecord of an authenticated request.
const SessionContextKey contextKey = "session"

const csrfTokenLen = 32

var ErrInvalidCredentials = errors.New("invalid credentials")

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	Roles      []string  `json:"roles"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	CSRFToken  string    `json:"-"`
}

type SessionManager struct {
	store  store.SessionStore
	users  store.UsersStore
	cfg    *config.AppConfig
	logger *utils.Logger
}

func NewSessionManager(sessions store.SessionStore, users store.UsersStore, cfg *config.AppConfig, logger *utils.Logger) *SessionManager {
	return &SessionManager{store: sessions, users: users, cfg: cfg, logger: logger}
}

// Authenticate checks credentials against an active user.
func (m *SessionManager) Authenticate(ctx context.Context, cred Credentials) (*store.User, error) {
	email := strings.ToLower(strings.TrimSpace(cred.Email))
	if email == "" || cred.Password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := m.users.FindByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.Active || !CheckPassword(user.PasswordHash, cred.Password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (m *SessionManager) Create(ctx context.Context, user *store.User, ip, userAgent string) (*Session, error) {
	id := uuid.Must(uuid.NewV4()).String()
	csrf, err := utils.RandString(csrfTokenLen)
	if err != nil {
		return nil, err
	}
	now := utils.NowUTC()
	sess := &Session{
		ID:         id,
		UserID:     user.ID,
		Email:      user.Email,
		Roles:      user.Roles(),
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.cfg.EffectiveSessionTTL()),
		CSRFToken:  csrf,
	}
	if err := m.store.SaveSession(ctx, &store.SessionRecord{
		ID:         sess.ID,
		UserID:     sess.UserID,
		Email:      sess.Email,
		Roles:      sess.Roles,
		IP:         sess.IP,
		UserAgent:  sess.UserAgent,
		CSRFToken:  sess.CSRFToken,
		CreatedAt:  sess.CreatedAt,
		LastSeenAt: sess.LastSeenAt,
		ExpiresAt:  sess.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	m.logger.Printf("session created user=%s", user.Email)
	return sess, nil
}

func (m *SessionManager) Refresh(ctx context.Context, sessID string) error {
	return m.store.UpdateActivity(ctx, sessID, utils.NowUTC(), m.cfg.EffectiveSessionTTL())
}

func (m *SessionManager) Rotate(ctx context.Context, sessID string) (*Session, error) {
	old, err := m.store.GetSession(ctx, sessID)
	if err != nil {
		return nil, err
	}
	user, err := m.users.Get(ctx, old.UserID)
	if err != nil {
		return nil, err
	}
	_ = m.store.DeleteSession(ctx, sessID)
	return m.Create(ctx, user, old.IP, old.UserAgent)
}

func (m *SessionManager) Delete(ctx context.Context, sessID string) error {
	return m.store.DeleteSession(ctx, sessID)
}

// Purge removes expired sessions.
func (m *SessionManager) Purge(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, utils.NowUTC())
}
