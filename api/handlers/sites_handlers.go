package handlers

import (
	"net/http"

	"worksafety/core/apperr"
	"worksafety/core/sites"
	"worksafety/core/store"
	"worksafety/core/utils"
)

type SitesHandler struct {
	svc    *sites.Service
	logger *utils.Logger
}

func NewSitesHandler(svc *sites.Service, logger *utils.Logger) *SitesHandler {
	return &SitesHandler{svc: svc, logger: logger}
}

func (h *SitesHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Companies(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *SitesHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var c store.Company
	if !decodeJSON(w, r, &c) {
		return
	}
	if err := h.svc.CreateCompany(r.Context(), &c); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *SitesHandler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if err := h.svc.DeleteCompany(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SitesHandler) Regions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"regions": sites.Regions()})
}

func (h *SitesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.List(r.Context(), store.SiteFilter{
		IDs:       parseIDList(q.Get("ids")),
		CompanyID: parseOptionalID(q.Get("company")),
		Search:    q.Get("q"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *SitesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var st store.Site
	if !decodeJSON(w, r, &st) {
		return
	}
	if err := h.svc.CreateSite(r.Context(), &st); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *SitesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	st, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SitesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var st store.Site
	if !decodeJSON(w, r, &st) {
		return
	}
	st.ID = id
	if err := h.svc.UpdateSite(r.Context(), &st); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SitesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if err := h.svc.DeleteSite(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SitesHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	items, err := h.svc.Locations(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(items)})
}

func (h *SitesHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var l store.Location
	if !decodeJSON(w, r, &l) {
		return
	}
	l.SiteID = id
	if err := h.svc.CreateLocation(r.Context(), &l); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *SitesHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "location_id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if err := h.svc.DeleteLocation(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
