package perimeters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"worksafety/core/apperr"
	"worksafety/core/store"
	"worksafety/core/utils"
)

const maxExternalIDLen = 12

type Service struct {
	store  store.PerimetersStore
	sites  store.SitesStore
	users  store.UsersStore
	logger *utils.Logger
}

func NewService(ps store.PerimetersStore, sites store.SitesStore, users store.UsersStore, logger *utils.Logger) *Service {
	return &Service{store: ps, sites: sites, users: users, logger: logger}
}

// Labeled is a perimeter with its position in the tree.
type Labeled struct {
	store.Perimeter
	Depth int    `json:"depth"`
	Label string `json:"label"`
}

func (s *Service) Create(ctx context.Context, p *store.Perimeter) error {
	if err := s.validate(ctx, p, nil); err != nil {
		return err
	}
	if _, err := s.store.CreatePerimeter(ctx, p); err != nil {
		return err
	}
	s.logger.Printf("perimeter created id=%d ref=%s site=%v", p.ID, p.ExternalID, derefID(p.SiteID))
	return nil
}

func (s *Service) Update(ctx context.Context, p *store.Perimeter) error {
	current, err := s.store.GetPerimeter(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := s.validate(ctx, p, current); err != nil {
		return err
	}
	return s.store.UpdatePerimeter(ctx, p)
}

func (s *Service) validate(ctx context.Context, p *store.Perimeter, current *store.Perimeter) error {
	p.Name = strings.TrimSpace(p.Name)
	p.ExternalID = strings.TrimSpace(p.ExternalID)
	if p.Name == "" {
		return apperr.Invalid("name", "common.required", "name is required")
	}
	if p.ExternalID == "" {
		return apperr.Invalid("external_id", "common.required", "reference is required")
	}
	if len(p.ExternalID) > maxExternalIDLen {
		return apperr.Invalid("external_id", "perimeters.externalIDTooLong", "reference must be at most %d characters", maxExternalIDLen)
	}
	if p.DisplayOrder < 0 {
		return apperr.Invalid("display_order", "perimeters.displayOrderNegative", "display order must not be negative")
	}
	if p.SiteID != nil {
		if _, err := s.sites.GetSite(ctx, *p.SiteID); err != nil {
			return notFoundAs(err, apperr.Invalid("site_id", "perimeters.siteNotFound", "site %d does not exist", *p.SiteID))
		}
	}
	if p.CategoryID != nil {
		if _, err := s.store.GetCategory(ctx, *p.CategoryID); err != nil {
			return notFoundAs(err, apperr.Invalid("category_id", "perimeters.categoryNotFound", "category %d does not exist", *p.CategoryID))
		}
	}
	if p.ParentID != nil {
		parent, err := s.store.GetPerimeter(ctx, *p.ParentID)
		if err != nil {
			return notFoundAs(err, apperr.Invalid("parent_id", "perimeters.parentNotFound", "parent perimeter %d does not exist", *p.ParentID))
		}
		if err := CheckSite(parent.SiteID, p.SiteID); err != nil {
			return err
		}
		if current != nil {
			all, err := s.store.ListPerimeters(ctx, store.PerimeterFilter{})
			if err != nil {
				return err
			}
			if NewTree(all).WouldCycle(p.ID, parent.ID) {
				return apperr.Invalid("parent_id", "perimeters.cycle", "perimeter cannot be placed under itself or one of its descendants")
			}
		}
	}
	if current != nil && !sameSite(current.SiteID, p.SiteID) && p.SiteID != nil {
		children, err := s.store.ListChildren(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if !sameSite(child.SiteID, p.SiteID) {
				return apperr.Invalid("site_id", "perimeters.childSiteMismatch", "child perimeter %s is bound to another site", child.ExternalID)
			}
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*store.Perimeter, error) {
	return s.store.GetPerimeter(ctx, id)
}

// ForSites returns perimeters bound to any of siteIDs plus the site-less ones.
func (s *Service) ForSites(ctx context.Context, siteIDs []int64) ([]store.Perimeter, error) {
	return s.store.ListPerimeters(ctx, store.PerimeterFilter{SiteIDs: siteIDs})
}

// Labeled returns ForSites in tree order with indented labels.
func (s *Service) Labeled(ctx context.Context, siteIDs []int64) ([]Labeled, error) {
	items, err := s.ForSites(ctx, siteIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]store.Perimeter, len(items))
	for _, p := range items {
		byID[p.ID] = p
	}
	tree := NewTree(items)
	out := make([]Labeled, 0, len(items))
	for _, n := range tree.Ordered() {
		out = append(out, Labeled{Perimeter: byID[n.ID], Depth: tree.Depth(n.ID), Label: tree.Label(n.ID)})
	}
	return out, nil
}

// Label returns the perimeter's indented label within its site's tree.
func (s *Service) Label(ctx context.Context, id int64) (string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	var siteIDs []int64
	if p.SiteID != nil {
		siteIDs = []int64{*p.SiteID}
	}
	items, err := s.Labeled(ctx, siteIDs)
	if err != nil {
		return "", err
	}
	for _, it := range items {
		if it.ID == id {
			return it.Label, nil
		}
	}
	return NewTree([]store.Perimeter{*p}).Label(p.ID), nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.SoftDeletePerimeter(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, c *store.PerimeterCategory) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return apperr.Invalid("name", "common.required", "name is required")
	}
	_, err := s.store.CreateCategory(ctx, c)
	return err
}

func (s *Service) Categories(ctx context.Context) ([]store.PerimeterCategory, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.store.SoftDeleteCategory(ctx, id)
}

// Relate attaches an internal user to a perimeter.
func (s *Service) Relate(ctx context.Context, rel *store.UserPerimeterRel) error {
	if err := s.checkRelation(ctx, rel); err != nil {
		return err
	}
	_, err := s.store.AddUserPerimeter(ctx, rel)
	return err
}

func (s *Service) UpdateRelation(ctx context.Context, rel *store.UserPerimeterRel) error {
	if err := s.checkRelation(ctx, rel); err != nil {
		return err
	}
	return s.store.UpdateUserPerimeter(ctx, rel)
}

func (s *Service) checkRelation(ctx context.Context, rel *store.UserPerimeterRel) error {
	if _, err := s.store.GetPerimeter(ctx, rel.PerimeterID); err != nil {
		return err
	}
	u, err := s.users.Get(ctx, rel.UserID)
	if err != nil {
		return notFoundAs(err, apperr.Invalid("user_id", "perimeters.userNotFound", "user %d does not exist", rel.UserID))
	}
	if !u.IsInternal {
		return apperr.Invalid("user_id", "perimeters.externalUser", "only internal users can be attached to a perimeter")
	}
	return nil
}

func (s *Service) Unrelate(ctx context.Context, userID, perimeterID int64) error {
	return s.store.RemoveUserPerimeter(ctx, userID, perimeterID)
}

func (s *Service) Relations(ctx context.Context, perimeterID int64) ([]store.UserPerimeterRel, error) {
	if _, err := s.store.GetPerimeter(ctx, perimeterID); err != nil {
		return nil, err
	}
	return s.store.ListPerimeterUsers(ctx, perimeterID)
}

// AssignableUser returns the user responsible for ticket assignment, or nil.
func (s *Service) AssignableUser(ctx context.Context, perimeterID int64) (*store.UserPerimeterRel, error) {
	rel, err := s.store.AssignableUser(ctx, perimeterID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return rel, err
}

// WebSubscribers lists users who asked for web notifications on siteID.
func (s *Service) WebSubscribers(ctx context.Context, siteID *int64) ([]int64, error) {
	return s.store.WebSubscribers(ctx, siteID)
}

func notFoundAs(err error, v *apperr.ValidationError) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return v
	}
	return fmt.Errorf("lookup: %w", err)
}

func derefID(id *int64) any {
	if id == nil {
		return "-"
	}
	return *id
}
