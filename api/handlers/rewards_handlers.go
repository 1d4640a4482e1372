package handlers

import (
	"errors"
	"net/http"

	"worksafety/core/apperr"
	"worksafety/core/rewards"
	"worksafety/core/sites"
	"worksafety/core/store"
	"worksafety/core/utils"
)

type RewardsHandler struct {
	ledger *rewards.Ledger
	sites  *sites.Service
	users  store.UsersStore
	logger *utils.Logger
}

func NewRewardsHandler(ledger *rewards.Ledger, ss *sites.Service, users store.UsersStore, logger *utils.Logger) *RewardsHandler {
	return &RewardsHandler{ledger: ledger, sites: ss, users: users, logger: logger}
}

func (h *RewardsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.ledger.Leaderboard(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nonNil(board)})
}

func (h *RewardsHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, bonuses, err := h.ledger.Profile(r.Context(), currentActor(r).UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "bonuses": nonNil(bonuses)})
}

func (h *RewardsHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "user_id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if _, err := h.users.Get(r.Context(), userID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ids, err := h.ledger.AllowedSites(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"site_ids": nonNil(ids)})
}

type allowSiteRequest struct {
	SiteID int64 `json:"site_id"`
}

func (h *RewardsHandler) AddSite(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "user_id")
	if !ok {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	var req allowSiteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.users.Get(r.Context(), userID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := h.sites.Get(r.Context(), req.SiteID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			err = apperr.Invalid("site_id", "rewards.siteNotFound", "site %d does not exist", req.SiteID)
		}
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.ledger.AllowSite(r.Context(), userID, req.SiteID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *RewardsHandler) RemoveSite(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "user_id")
	siteID, okSite := pathID(r, "site_id")
	if !ok || !okSite {
		writeError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	if err := h.ledger.DisallowSite(r.Context(), userID, siteID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunBonus evaluates one bonus window now; reruns in the same period award nothing.
func (h *RewardsHandler) RunBonus(w http.ResponseWriter, r *http.Request) {
	kind := store.BonusType(urlParam(r, "type"))
	res, err := h.ledger.EvaluateBonus(r.Context(), kind, utils.NowUTC())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
