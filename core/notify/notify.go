package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"worksafety/core/metrics"
	"worksafety/core/store"
	"worksafety/core/utils"
)

// Kind tags the entity a notification points at.
type Kind string

const (
	KindIncident   Kind = "incident"
	KindPlanAction Kind = "planaction"
	KindBonus      Kind = "bonus"
	KindSite       Kind = "site"
	KindPerimeter  Kind = "perimeter"
)

func (k Kind) Valid() bool {
	switch k {
	case KindIncident, KindPlanAction, KindBonus, KindSite, KindPerimeter:
		return true
	}
	return false
}

type Ref struct {
	Kind Kind
	ID   int64
}

func RefTo(kind Kind, id int64) *Ref {
	return &Ref{Kind: kind, ID: id}
}

type Notice struct {
	UserID  int64
	Title   string
	Message string
	Related *Ref
}

type Dispatcher interface {
	Notify(ctx context.Context, n Notice) error
}

// StoreDispatcher persists notices as in-app notifications.
type StoreDispatcher struct {
	store   store.NotificationsStore
	metrics *metrics.Metrics
	logger  *utils.Logger
}

func NewStoreDispatcher(ns store.NotificationsStore, m *metrics.Metrics, logger *utils.Logger) *StoreDispatcher {
	return &StoreDispatcher{store: ns, metrics: m, logger: logger}
}

func (d *StoreDispatcher) Notify(ctx context.Context, n Notice) error {
	rec := &store.Notification{UserID: n.UserID, Title: n.Title, Message: n.Message}
	if n.Related != nil {
		if !n.Related.Kind.Valid() {
			return fmt.Errorf("notify: unknown related kind %q", n.Related.Kind)
		}
		rec.RelatedKind = string(n.Related.Kind)
		id := n.Related.ID
		rec.RelatedID = &id
	}
	if _, err := d.store.CreateNotification(ctx, rec); err != nil {
		return fmt.Errorf("notify user %d: %w", n.UserID, err)
	}
	d.metrics.NotificationSent()
	d.logger.Debugf("notification %d queued for user %d", rec.ID, n.UserID)
	return nil
}

// Resolver returns a display label for the entity with the given id.
type Resolver func(ctx context.Context, id int64) (string, error)

// Registry maps a Kind to the resolver able to describe it.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[Kind]Resolver
}

func NewRegistry() *Registry {
	return &Registry{resolvers: map[Kind]Resolver{}}
}

func (r *Registry) Register(kind Kind, fn Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[kind] = fn
}

// Resolve falls back to "kind #id" when no resolver is registered or the lookup fails.
func (r *Registry) Resolve(ctx context.Context, ref Ref) string {
	fallback := string(ref.Kind) + " #" + strconv.FormatInt(ref.ID, 10)
	if r == nil {
		return fallback
	}
	r.mu.RLock()
	fn := r.resolvers[ref.Kind]
	r.mu.RUnlock()
	if fn == nil {
		return fallback
	}
	label, err := fn(ctx, ref.ID)
	if err != nil || label == "" {
		return fallback
	}
	return label
}

const unreadCap = 99

// Badge renders an unread counter, "" for none and "99+" past the cap.
func Badge(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > unreadCap:
		return strconv.Itoa(unreadCap) + "+"
	default:
		return strconv.Itoa(unread)
	}
}

// Item is a notification with its related object resolved for display.
type Item struct {
	store.Notification
	RelatedLabel string `json:"related_label,omitempty"`
}

// Inbox reads and acknowledges notifications for one user.
type Inbox struct {
	store    store.NotificationsStore
	registry *Registry
}

func NewInbox(ns store.NotificationsStore, registry *Registry) *Inbox {
	return &Inbox{store: ns, registry: registry}
}

func (in *Inbox) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Item, error) {
	items, err := in.store.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(items))
	for _, n := range items {
		it := Item{Notification: n}
		if n.RelatedKind != "" && n.RelatedID != nil {
			it.RelatedLabel = in.registry.Resolve(ctx, Ref{Kind: Kind(n.RelatedKind), ID: *n.RelatedID})
		}
		out = append(out, it)
	}
	return out, nil
}

func (in *Inbox) MarkRead(ctx context.Context, userID, id int64) error {
	return in.store.MarkRead(ctx, userID, id)
}

func (in *Inbox) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return in.store.MarkAllRead(ctx, userID)
}

func (in *Inbox) Unread(ctx context.Context, userID int64) (int, string, error) {
	n, err := in.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	return n, Badge(n), nil
}
