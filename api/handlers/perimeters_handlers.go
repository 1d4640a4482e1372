package handlers

import (
	"net/http"

	"worksafety/core/apperr"
	"worksafety/core/perimeters"
	"worksafety/core/store"
	"worksafety/core/utils"
)

type PerimetersHandler struct {
	svc    *perimeters.Service
	logger *utils.Logger
}

func NewPerimetersHandler(svc *perimeters.Service, logger *utils.Logger) *PerimetersHandler {
	return &PerimetersHandler{svc: svc, logger: logger}
}

// List returns perimeters of ?site=1,2 plus the shared ones, flat.
func (h *PerimetersHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ForSites(r.Context(), parseIDList(r.URL.Query().Get("site")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

// Tree returns the same selection in display order with indented labels.
func (h *PerimetersHandler) Tree(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Labeled(r.Context(), parseIDList(r.URL.Query().Get("site")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *PerimetersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p store.Perimeter
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := h.svc.Create(r.Context(), &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PerimetersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PerimetersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var p store.Perimeter
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = id
	if err := h.svc.Update(r.Context(), &p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PerimetersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PerimetersHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Categories(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *PerimetersHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var c store.PerimeterCategory
	if !decodeJSON(w, r, &c) {
		return
	}
	if err := h.svc.CreateCategory(r.Context(), &c); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *PerimetersHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PerimetersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	rels, err := h.svc.Relations(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	assignable, err := h.svc.AssignableUser(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := map[string]any{"items": nonNil(rels), "assignable_user_id": nil}
	if assignable != nil {
		out["assignable_user_id"] = assignable.UserID
	}
	writeJSON(w, http.StatusOK, out)
}

// PutUser creates or updates the relation of {user_id} to perimeter {id}.
func (h *PerimetersHandler) PutUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	userID, okUser := pathID(r, "user_id")
	if !ok || !okUser {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var rel store.UserPerimeterRel
	if !decodeJSON(w, r, &rel) {
		return
	}
	rel.PerimeterID = id
	rel.UserID = userID
	existing, err := h.svc.Relations(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	for _, e := range existing {
		if e.UserID == userID {
			status = http.StatusOK
			rel.ID = e.ID
		}
	}
	if status == http.StatusOK {
		err = h.svc.UpdateRelation(r.Context(), &rel)
	} else {
		err = h.svc.Relate(r.Context(), &rel)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, rel)
}

func (h *PerimetersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	userID, okUser := pathID(r, "user_id")
	if !ok || !okUser {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if err := h.svc.Unrelate(r.Context(), userID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
