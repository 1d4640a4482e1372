package handlers

import (
	"net/http"
	"strings"

	"worksafety/core/apperr"
	"worksafety/core/planactions"
	"worksafety/core/store"
	"worksafety/core/utils"
	"worksafety/core/workflow"
)

type PlanActionsHandler struct {
	svc    *planactions.Service
	logger *utils.Logger
}

func NewPlanActionsHandler(svc *planactions.Service, logger *utils.Logger) *PlanActionsHandler {
	return &PlanActionsHandler{svc: svc, logger: logger}
}

func (h *PlanActionsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.PlanActionFilter{
		Search:     q.Get("q"),
		Status:     workflow.Status(strings.TrimSpace(q.Get("status"))),
		IncidentID: parseOptionalID(q.Get("incident")),
		Sort:       q.Get("sort"),
		Desc:       q.Get("desc") == "1" || q.Get("desc") == "true",
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, r, h.logger, apperr.Invalid("status", "planactions.statusInvalid", "unknown status %q", filter.Status))
		return
	}
	page, err := h.svc.List(r.Context(), currentActor(r), filter, parseIntDefault(q.Get("page"), 1), parseIntDefault(q.Get("per_page"), 0))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PlanActionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var pa store.PlanAction
	if !decodeJSON(w, r, &pa) {
		return
	}
	if err := h.svc.Create(r.Context(), currentActor(r), &pa); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, pa)
}

func (h *PlanActionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	pa, err := h.svc.Get(r.Context(), currentActor(r), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pa)
}

func (h *PlanActionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *PlanActionsHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pa, err := h.svc.AdvanceStatus(r.Context(), currentActor(r), id, workflow.Transition(strings.TrimSpace(req.Transition)))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pa)
}
