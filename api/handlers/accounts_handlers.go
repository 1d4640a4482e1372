package handlers

import (
	"net/http"

	"worksafety/core/apperr"
	"worksafety/core/auth"
	"worksafety/core/store"
	"worksafety/core/utils"
)

type AccountsHandler struct {
	users  store.UsersStore
	logger *utils.Logger
}

func NewAccountsHandler(users store.UsersStore, logger *utils.Logger) *AccountsHandler {
	return &AccountsHandler{users: users, logger: logger}
}

func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.users.List(r.Context(), r.URL.Query().Get("deleted") == "1")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var nu auth.NewUser
	if !decodeJSON(w, r, &nu) {
		return
	}
	u, err := auth.RegisterUser(r.Context(), h.users, nu)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Printf("user created email=%s role=%s by=%s", u.Email, u.Role, currentActor(r).Email)
	writeJSON(w, http.StatusCreated, u)
}

func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "user_id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if id == currentActor(r).UserID {
		writeError(w, r, h.logger, apperr.Warn("users.selfDelete", "you cannot delete your own account"))
		return
	}
	if err := h.users.SoftDelete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
