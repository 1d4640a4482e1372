package handlers

import (
	"errors"
	"net/http"

	"worksafety/config"
	"worksafety/core/auth"
	"worksafety/core/rbac"
	"worksafety/core/store"
	"worksafety/core/utils"
)

type AuthHandler struct {
	cfg            *config.AppConfig
	users          store.UsersStore
	sessionManager *auth.SessionManager
	policy         *rbac.Policy
	logger         *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, users store.UsersStore, sm *auth.SessionManager, policy *rbac.Policy, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, sessionManager: sm, policy: policy, logger: logger}
}

// userView is the logged-in user with the permissions the UI needs.
type userView struct {
	ID          int64             `json:"id"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Roles       []string          `json:"roles"`
	Permissions []rbac.Permission `json:"permissions"`
}

var exposedPermissions = []rbac.Permission{
	rbac.PermIncidentsView, rbac.PermIncidentsViewAll, rbac.PermIncidentsCreate, rbac.PermIncidentsEdit,
	rbac.PermIncidentsStatus, rbac.PermIncidentsAssign, rbac.PermIncidentsDelete,
	rbac.PermPlanActionsView, rbac.PermPlanActionsCreate, rbac.PermPlanActionsStatus, rbac.PermPlanActionsDelete,
	rbac.PermSitesView, rbac.PermSitesManage, rbac.PermPerimetersView, rbac.PermPerimetersManage,
	rbac.PermRewardsView, rbac.PermRewardsManage, rbac.PermNotificationsView, rbac.PermUsersManage,
}

func (h *AuthHandler) view(u *store.User) userView {
	roles := u.Roles()
	var perms []rbac.Permission
	for _, p := range exposedPermissions {
		if h.policy.Allowed(roles, p) {
			perms = append(perms, p)
		}
	}
	return userView{ID: u.ID, Email: u.Email, Name: u.FullName(), Roles: roles, Permissions: perms}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred auth.Credentials
	if !decodeJSON(w, r, &cred) {
		return
	}
	user, err := h.sessionManager.Authenticate(r.Context(), cred)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Printf("AUTH login failed email=%s ip=%s", cred.Email, ClientIP(r, h.cfg))
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	sess, err := h.sessionManager.Create(r.Context(), user, ClientIP(r, h.cfg), r.UserAgent())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	secure := IsSecureRequest(r, h.cfg)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    sess.CSRFToken,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       h.view(user),
		"csrf_token": sess.CSRFToken,
		"expires_at": sess.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sr := currentSession(r); sr != nil {
		_ = h.sessionManager.Delete(r.Context(), sr.ID)
	}
	secure := IsSecureRequest(r, h.cfg)
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: secure, SameSite: http.SameSiteLaxMode})
	http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: "", Path: "/", MaxAge: -1, Secure: secure, SameSite: http.SameSiteLaxMode})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sr := currentSession(r)
	user, err := h.users.Get(r.Context(), sr.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": h.view(user), "csrf_token": sr.CSRFToken})
}
