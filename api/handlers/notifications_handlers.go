package handlers

import (
	"net/http"

	"worksafety/core/apperr"
	"worksafety/core/notify"
	"worksafety/core/utils"
)

const defaultInboxLimit = 50

type NotificationsHandler struct {
	inbox  *notify.Inbox
	logger *utils.Logger
}

func NewNotificationsHandler(inbox *notify.Inbox, logger *utils.Logger) *NotificationsHandler {
	return &NotificationsHandler{inbox: inbox, logger: logger}
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := currentActor(r).UserID
	q := r.URL.Query()
	limit := parseIntDefault(q.Get("limit"), defaultInboxLimit)
	if limit <= 0 || limit > 200 {
		limit = defaultInboxLimit
	}
	items, err := h.inbox.List(r.Context(), userID, q.Get("unread") == "1", limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	unread, badge, err := h.inbox.Unread(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items), "unread": unread, "badge": badge})
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if err := h.inbox.MarkRead(r.Context(), currentActor(r).UserID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.inbox.MarkAllRead(r.Context(), currentActor(r).UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "marked": n})
}
