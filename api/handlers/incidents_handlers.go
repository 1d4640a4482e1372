package handlers

import (
	"net/http"
	"strings"
	"time"

	"worksafety/core/apperr"
	"worksafety/core/incidents"
	"worksafety/core/store"
	"worksafety/core/utils"
	"worksafety/core/workflow"
)

type IncidentsHandler struct {
	svc    *incidents.Service
	logger *utils.Logger
}

func NewIncidentsHandler(svc *incidents.Service, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{svc: svc, logger: logger}
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.IncidentFilter{
		Search:    q.Get("q"),
		Type:      store.IncidentType(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
		Status:    workflow.Status(strings.TrimSpace(q.Get("status"))),
		SiteID:    parseOptionalID(q.Get("site")),
		CreatedBy: parseOptionalID(q.Get("created_by")),
		Sort:      q.Get("sort"),
		Desc:      q.Get("desc") == "1" || q.Get("desc") == "true",
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, r, h.logger, apperr.Invalid("type", "incidents.typeInvalid", "incident type must be PA or OSE"))
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, r, h.logger, apperr.Invalid("status", "incidents.statusInvalid", "unknown status %q", filter.Status))
		return
	}
	var err error
	if filter.ReportedFrom, err = parseDay(q.Get("from"), "from"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	to, err := parseDay(q.Get("to"), "to")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if to != nil {
		// inclusive day
		end := to.AddDate(0, 0, 1)
		filter.ReportedTo = &end
	}
	page, err := h.svc.List(r.Context(), currentActor(r), filter, parseIntDefault(q.Get("page"), 1), parseIntDefault(q.Get("per_page"), 0))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseDay(val, field string) (*time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return nil, apperr.Invalid(field, "common.dateInvalid", "expected a YYYY-MM-DD date")
	}
	return &t, nil
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var inc store.Incident
	if !decodeJSON(w, r, &inc) {
		return
	}
	if err := h.svc.Create(r.Context(), currentActor(r), &inc); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	inc, err := h.svc.Get(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var inc store.Incident
	if !decodeJSON(w, r, &inc) {
		return
	}
	inc.ID = id
	if err := h.svc.Update(r.Context(), currentActor(r), &inc); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if err := h.svc.Delete(r.Context(), currentActor(r), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *IncidentsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	inc, err := h.svc.Restore(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type statusRequest struct {
	Transition string `json:"transition"`
}

// AdvanceStatus applies the requested transition, or the next one when none is given.
func (h *IncidentsHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inc, err := h.svc.AdvanceStatus(r.Context(), currentActor(r), id, workflow.Transition(strings.TrimSpace(req.Transition)))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type assignRequest struct {
	AssignedTo *int64 `json:"assigned_to"`
}

func (h *IncidentsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inc, err := h.svc.Assign(r.Context(), currentActor(r), id, req.AssignedTo)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func (h *IncidentsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Dashboard(r.Context(), currentActor(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"by_status": counts})
}
