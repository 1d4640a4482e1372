package incidents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"worksafety/config"
	"worksafety/core/apperr"
	"worksafety/core/auth"
	"worksafety/core/metrics"
	"worksafety/core/notify"
	"worksafety/core/perimeters"
	"worksafety/core/rbac"
	"worksafety/core/rewards"
	"worksafety/core/sites"
	"worksafety/core/store"
	"worksafety/core/utils"
	"worksafety/core/workflow"
)

const entity = "incident"

type Service struct {
	cfg        config.IncidentsConfig
	store      store.IncidentsStore
	users      store.UsersStore
	sites      *sites.Service
	perimeters *perimeters.Service
	ledger     *rewards.Ledger
	policy     *rbac.Policy
	dispatcher notify.Dispatcher
	metrics    *metrics.Metrics
	logger     *utils.Logger
}

type Deps struct {
	Store      store.IncidentsStore
	Users      store.UsersStore
	Sites      *sites.Service
	Perimeters *perimeters.Service
	Ledger     *rewards.Ledger
	Policy     *rbac.Policy
	Dispatcher notify.Dispatcher
	Metrics    *metrics.Metrics
	Logger     *utils.Logger
}

func NewService(cfg config.IncidentsConfig, d Deps) *Service {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 5
	}
	if cfg.MaxPerPage < cfg.PerPage {
		cfg.MaxPerPage = 100
	}
	return &Service{
		cfg:        cfg,
		store:      d.Store,
		users:      d.Users,
		sites:      d.Sites,
		perimeters: d.Perimeters,
		ledger:     d.Ledger,
		policy:     d.Policy,
		dispatcher: d.Dispatcher,
		metrics:    d.Metrics,
		logger:     d.Logger,
	}
}

// Page is one page of a listing.
type Page struct {
	Items   []store.Incident `json:"items"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

func (s *Service) seesAll(a auth.Actor) bool {
	return rbac.IsAdmin(a.Roles) || s.policy.Allowed(a.Roles, rbac.PermIncidentsViewAll)
}

func visible(a auth.Actor, inc *store.Incident) bool {
	return (inc.CreatedBy != nil && *inc.CreatedBy == a.UserID) || (inc.AssignedTo != nil && *inc.AssignedTo == a.UserID)
}

// Create stores a new pending incident and credits its reporter in the same transaction.
func (s *Service) Create(ctx context.Context, a auth.Actor, inc *store.Incident) error {
	if err := Validate(inc); err != nil {
		return err
	}
	if err := s.scopeSite(ctx, a, inc); err != nil {
		return err
	}
	inc.ID = 0
	inc.Reference = ""
	inc.ReportDate = time.Time{}
	inc.Status = workflow.StatusPending
	inc.AssignedTo = nil
	if a.UserID > 0 {
		uid := a.UserID
		inc.CreatedBy = &uid
		inc.UpdatedBy = &uid
	} else {
		inc.CreatedBy, inc.UpdatedBy = nil, nil
	}
	if _, err := s.store.CreateIncident(ctx, inc, s.ledger.IncidentHook()); err != nil {
		return err
	}
	s.metrics.IncidentCreated(string(inc.Type))
	s.logger.Printf("incident created ref=%s type=%s by=%s", inc.Reference, inc.Type, a.Email)
	if inc.CreatedBy != nil {
		s.ledger.Credited(ctx, *inc.CreatedBy, inc.ID)
	}
	if s.cfg.NotifyOnCreate {
		s.announce(ctx, a, inc)
	}
	return nil
}

// scopeSite applies the actor's allowed sites and checks the location belongs to the site.
func (s *Service) scopeSite(ctx context.Context, a auth.Actor, inc *store.Incident) error {
	if !rbac.IsAdmin(a.Roles) {
		allowed, err := s.ledger.AllowedSites(ctx, a.UserID)
		if err != nil {
			return err
		}
		if inc.SiteID == nil && len(allowed) == 1 {
			site := allowed[0]
			inc.SiteID = &site
		}
		if inc.SiteID != nil && !containsID(allowed, *inc.SiteID) {
			return apperr.Invalid("site_id", "incidents.siteNotAllowed", "you may not report incidents on this site")
		}
	}
	if inc.SiteID != nil {
		if _, err := s.sites.Get(ctx, *inc.SiteID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.Invalid("site_id", "incidents.siteNotFound", "site %d does not exist", *inc.SiteID)
			}
			return err
		}
	}
	if inc.LocationID != nil {
		if inc.SiteID == nil {
			return apperr.Invalid("location_id", "incidents.locationSite", "a location requires a site")
		}
		if err := s.sites.LocationOnSite(ctx, *inc.LocationID, *inc.SiteID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) announce(ctx context.Context, a auth.Actor, inc *store.Incident) {
	subscribers, err := s.perimeters.WebSubscribers(ctx, inc.SiteID)
	if err != nil {
		s.logger.Warnf("incident %s: subscribers: %v", inc.Reference, err)
		return
	}
	for _, uid := range subscribers {
		if uid == a.UserID {
			continue
		}
		err := s.dispatcher.Notify(ctx, notify.Notice{
			UserID:  uid,
			Title:   "New incident " + inc.Reference,
			Message: inc.Name,
			Related: notify.RefTo(notify.KindIncident, inc.ID),
		})
		if err != nil {
			s.logger.Warnf("incident %s: notify user %d: %v", inc.Reference, uid, err)
		}
	}
}

func (s *Service) Get(ctx context.Context, a auth.Actor, id int64) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.seesAll(a) && !visible(a, inc) {
		return nil, apperr.ErrNotFound
	}
	return inc, nil
}

// Update rewrites the descriptive fields. Status, reference, creator and assignee are kept.
func (s *Service) Update(ctx context.Context, a auth.Actor, inc *store.Incident) error {
	current, err := s.Get(ctx, a, inc.ID)
	if err != nil {
		return err
	}
	owner := current.CreatedBy != nil && *current.CreatedBy == a.UserID
	if !owner && !rbac.IsAdmin(a.Roles) && !s.policy.Allowed(a.Roles, rbac.PermIncidentsEdit) {
		return apperr.ErrForbidden
	}
	if current.Status.Terminal() {
		return apperr.Warn("incidents.locked", "a completed incident can no longer be edited")
	}
	if err := Validate(inc); err != nil {
		return err
	}
	if err := s.scopeSite(ctx, a, inc); err != nil {
		return err
	}
	uid := a.UserID
	inc.UpdatedBy = &uid
	if err := s.store.UpdateIncidentDetails(ctx, inc); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return apperr.Warn("incidents.locked", "the incident was completed or removed meanwhile")
		}
		return err
	}
	inc.Reference = current.Reference
	inc.Status = current.Status
	inc.CreatedBy = current.CreatedBy
	inc.AssignedTo = current.AssignedTo
	inc.ReportDate = current.ReportDate
	return nil
}

// Assign sets or clears the assignee. Only pending incidents can be reassigned.
func (s *Service) Assign(ctx context.Context, a auth.Actor, id int64, assignee *int64) (*store.Incident, error) {
	if !s.policy.Allowed(a.Roles, rbac.PermIncidentsAssign) {
		return nil, apperr.ErrForbidden
	}
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status != workflow.StatusPending {
		return nil, s.refuse("assignment_locked", apperr.Warn("incidents.assignmentLocked", "the assignee can only be changed while the incident is pending"))
	}
	if assignee != nil {
		u, err := s.users.Get(ctx, *assignee)
		if errors.Is(err, apperr.ErrNotFound) || (err == nil && !u.Active) {
			return nil, apperr.Invalid("assigned_to", "incidents.assigneeNotFound", "user %d cannot be assigned", *assignee)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := s.store.AssignIncident(ctx, id, assignee, a.UserID); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, s.refuse("assignment_locked", apperr.Warn("incidents.assignmentLocked", "the assignee can only be changed while the incident is pending"))
		}
		return nil, err
	}
	s.logger.Printf("incident assigned ref=%s to=%v by=%s", inc.Reference, assigneeLabel(assignee), a.Email)
	return s.store.GetIncident(ctx, id)
}

// AdvanceStatus applies tr on behalf of the incident's assignee. An empty tr
// means the single forward step from the current status.
func (s *Service) AdvanceStatus(ctx context.Context, a auth.Actor, id int64, tr workflow.Transition) (*store.Incident, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status.Terminal() {
		return nil, s.refuse("already_done", apperr.Warn("incidents.alreadyDone", "the incident is already done"))
	}
	if inc.AssignedTo == nil || *inc.AssignedTo != a.UserID {
		return nil, s.refuse("not_assignee", apperr.Warn("incidents.notAssignee", "only the assignee can change the status of this incident"))
	}
	if tr == "" {
		if tr, err = workflow.Next(inc.Status); err != nil {
			return nil, err
		}
	}
	if tr == workflow.StartWork && !s.policy.Allowed(a.Roles, rbac.PermIncidentsStatus) {
		return nil, apperr.ErrForbidden
	}
	next, err := tr.Apply(inc.Status)
	if err != nil {
		return nil, s.refuse("invalid_transition", transitionWarning(err))
	}
	// the assignee becomes the last updater; the store keeps the old value when unassigned
	if err := s.store.TransitionIncident(ctx, id, inc.Status, next, inc.AssignedTo); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, s.refuse("concurrent", apperr.Warn("incidents.statusChanged", "the incident changed meanwhile, reload and retry"))
		}
		return nil, err
	}
	s.metrics.Transition(entity, string(tr))
	s.logger.Printf("incident %s %s -> %s by=%s", inc.Reference, inc.Status, next, a.Email)
	return s.store.GetIncident(ctx, id)
}

func (s *Service) refuse(reason string, w *apperr.PolicyWarning) error {
	s.metrics.Refused(entity, reason)
	return w
}

func transitionWarning(err error) *apperr.PolicyWarning {
	if errors.Is(err, workflow.ErrUnknownTransition) {
		return apperr.Warn("incidents.unknownTransition", err.Error())
	}
	return apperr.Warn("incidents.invalidTransition", err.Error())
}

func (s *Service) List(ctx context.Context, a auth.Actor, filter store.IncidentFilter, page, perPage int) (*Page, error) {
	if perPage <= 0 {
		perPage = s.cfg.PerPage
	}
	if perPage > s.cfg.MaxPerPage {
		perPage = s.cfg.MaxPerPage
	}
	if page < 1 {
		page = 1
	}
	filter.IncludeDeleted = false
	filter.VisibleTo = 0
	if !s.seesAll(a) {
		filter.VisibleTo = a.UserID
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	items, total, err := s.store.ListIncidents(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Incident{}
	}
	return &Page{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// Dashboard counts the incidents visible to a per status.
func (s *Service) Dashboard(ctx context.Context, a auth.Actor) (map[workflow.Status]int, error) {
	var filter store.IncidentFilter
	if !s.seesAll(a) {
		filter.VisibleTo = a.UserID
	}
	return s.store.CountIncidentsByStatus(ctx, filter)
}

func (s *Service) Delete(ctx context.Context, a auth.Actor, id int64) error {
	if !s.policy.Allowed(a.Roles, rbac.PermIncidentsDelete) {
		return apperr.ErrForbidden
	}
	if err := s.store.SoftDeleteIncident(ctx, id); err != nil {
		if apperr.IsValidation(err) {
			s.metrics.SoftDeleteRefused(entity)
		}
		return err
	}
	s.logger.Printf("incident deleted id=%d by=%s", id, a.Email)
	return nil
}

func (s *Service) Restore(ctx context.Context, a auth.Actor, id int64) (*store.Incident, error) {
	if !s.policy.Allowed(a.Roles, rbac.PermIncidentsDelete) {
		return nil, apperr.ErrForbidden
	}
	if err := s.store.RestoreIncident(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Printf("incident restored id=%d by=%s", id, a.Email)
	return s.store.GetIncident(ctx, id)
}

// Label resolves an incident for notification display.
func (s *Service) Label(ctx context.Context, id int64) (string, error) {
	inc, err := s.store.GetIncidentUnscoped(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s", inc.Reference, inc.Name), nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func assigneeLabel(id *int64) any {
	if id == nil {
		return "nobody"
	}
	return *id
}
