// Package planactions runs follow-up action plans through the shared four-state lifecycle.
package planactions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"worksafety/config"
	"worksafety/core/apperr"
	"worksafety/core/auth"
	"worksafety/core/metrics"
	"worksafety/core/rbac"
	"worksafety/core/store"
	"worksafety/core/utils"
	"worksafety/core/workflow"
)

const (
	entity      = "planaction"
	maxTitleLen = 150
)

type Service struct {
	cfg     config.PlanActionConfig
	store   store.PlanActionsStore
	policy  *rbac.Policy
	metrics *metrics.Metrics
	logger  *utils.Logger
}

func NewService(cfg config.PlanActionConfig, ps store.PlanActionsStore, policy *rbac.Policy, m *metrics.Metrics, logger *utils.Logger) *Service {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 10
	}
	return &Service{cfg: cfg, store: ps, policy: policy, metrics: m, logger: logger}
}

type Page struct {
	Items   []store.PlanAction `json:"items"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
}

func (s *Service) seesAll(a auth.Actor) bool {
	return rbac.IsAdmin(a.Roles) || s.policy.Allowed(a.Roles, rbac.PermPlanActionsViewAll)
}

func (s *Service) Create(ctx context.Context, a auth.Actor, pa *store.PlanAction) error {
	if !s.policy.Allowed(a.Roles, rbac.PermPlanActionsCreate) {
		return apperr.ErrForbidden
	}
	pa.Title = strings.TrimSpace(pa.Title)
	if pa.Title == "" {
		return apperr.Invalid("title", "common.required", "title is required")
	}
	if len(pa.Title) > maxTitleLen {
		return apperr.Invalid("title", "common.tooLong", "title must be at most %d characters", maxTitleLen)
	}
	pa.ID = 0
	pa.Reference = ""
	pa.Status = workflow.StatusPending
	uid := a.UserID
	pa.CreatedBy = &uid
	pa.UpdatedBy = &uid
	if _, err := s.store.CreatePlanAction(ctx, pa); err != nil {
		return err
	}
	s.logger.Printf("plan action created ref=%s incident=%v by=%s", pa.Reference, incidentLabel(pa.IncidentID), a.Email)
	return nil
}

func (s *Service) Get(ctx context.Context, a auth.Actor, id int64) (*store.PlanAction, error) {
	pa, err := s.store.GetPlanAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.seesAll(a) && (pa.CreatedBy == nil || *pa.CreatedBy != a.UserID) {
		return nil, apperr.ErrNotFound
	}
	return pa, nil
}

// AdvanceStatus applies tr, or the next forward step when tr is empty.
func (s *Service) AdvanceStatus(ctx context.Context, a auth.Actor, id int64, tr workflow.Transition) (*store.PlanAction, error) {
	if !s.policy.Allowed(a.Roles, rbac.PermPlanActionsStatus) {
		return nil, apperr.ErrForbidden
	}
	pa, err := s.store.GetPlanAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if pa.Status.Terminal() {
		s.metrics.Refused(entity, "already_done")
		return nil, apperr.Warn("planactions.alreadyDone", "the action plan is already done")
	}
	if tr == "" {
		if tr, err = workflow.Next(pa.Status); err != nil {
			return nil, err
		}
	}
	next, err := tr.Apply(pa.Status)
	if err != nil {
		s.metrics.Refused(entity, "invalid_transition")
		if errors.Is(err, workflow.ErrUnknownTransition) {
			return nil, apperr.Warn("planactions.unknownTransition", err.Error())
		}
		return nil, apperr.Warn("planactions.invalidTransition", err.Error())
	}
	if err := s.store.TransitionPlanAction(ctx, id, pa.Status, next, pa.CreatedBy); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.metrics.Refused(entity, "concurrent")
			return nil, apperr.Warn("planactions.statusChanged", "the action plan changed meanwhile, reload and retry")
		}
		return nil, err
	}
	s.metrics.Transition(entity, string(tr))
	s.logger.Printf("plan action %s %s -> %s by=%s", pa.Reference, pa.Status, next, a.Email)
	return s.store.GetPlanAction(ctx, id)
}

func (s *Service) List(ctx context.Context, a auth.Actor, filter store.PlanActionFilter, page, perPage int) (*Page, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = s.cfg.PerPage
	}
	if page < 1 {
		page = 1
	}
	filter.CreatedBy = 0
	if !s.seesAll(a) {
		filter.CreatedBy = a.UserID
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	items, total, err := s.store.ListPlanActions(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.PlanAction{}
	}
	return &Page{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *Service) Delete(ctx context.Context, a auth.Actor, id int64) error {
	if !s.policy.Allowed(a.Roles, rbac.PermPlanActionsDelete) {
		return apperr.ErrForbidden
	}
	if err := s.store.SoftDeletePlanAction(ctx, id); err != nil {
		if apperr.IsValidation(err) {
			s.metrics.SoftDeleteRefused(entity)
		}
		return err
	}
	s.logger.Printf("plan action deleted id=%d by=%s", id, a.Email)
	return nil
}

func (s *Service) Label(ctx context.Context, id int64) (string, error) {
	pa, err := s.store.GetPlanAction(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s", pa.Reference, pa.Title), nil
}

func incidentLabel(id *int64) any {
	if id == nil {
		return "-"
	}
	return *id
}
