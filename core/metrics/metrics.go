// Package metrics exposes Prometheus counters for the incident workflow and the reward ledger.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is then a no-op.
type Metrics struct {
	IncidentsCreated   *prometheus.CounterVec // by incident type
	Transitions        *prometheus.CounterVec // by entity and transition
	TransitionRefusals *prometheus.CounterVec // by entity and reason code
	PointsAwarded      *prometheus.CounterVec // by source
	BonusesAwarded     *prometheus.CounterVec // by bonus type
	SoftDeleteRefusals *prometheus.CounterVec // by entity
	NotificationsSent  prometheus.Counter

	registry *prometheus.Registry
}

func New(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{registry: registry}
	m.IncidentsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worksafety",
		Name:      "incidents_created_total",
		Help:      "Incidents reported, by incident type",
	}, []string{"type"})
	m.Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worksafety",
		Name:      "status_transitions_total",
		Help:      "Applied status transitions by entity and transition",
	}, []string{"entity", "transition"})
	m.TransitionRefusals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worksafety",
		Name:      "status_transition_refusals_total",
		Help:      "Refused transition or assignment requests by entity and reason",
	}, []string{"entity", "reason"})
	m.PointsAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worksafety",
		Name:      "reward_points_awarded_total",
		Help:      "Reward points credited, by source (incident, weekly, monthly, quarterly)",
	}, []string{"source"})
	m.BonusesAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worksafety",
		Name:      "reward_bonuses_awarded_total",
		Help:      "Bonus ledger rows appended, by bonus type",
	}, []string{"bonus_type"})
	m.SoftDeleteRefusals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "worksafety",
		Name:      "soft_delete_refusals_total",
		Help:      "Soft deletes refused because live rows still reference the entity",
	}, []string{"entity"})
	m.NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "worksafety",
		Name:      "notifications_sent_total",
		Help:      "In-app notifications enqueued",
	})
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register worksafety metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.IncidentsCreated.Describe(ch)
	m.Transitions.Describe(ch)
	m.TransitionRefusals.Describe(ch)
	m.PointsAwarded.Describe(ch)
	m.BonusesAwarded.Describe(ch)
	m.SoftDeleteRefusals.Describe(ch)
	m.NotificationsSent.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.IncidentsCreated.Collect(ch)
	m.Transitions.Collect(ch)
	m.TransitionRefusals.Collect(ch)
	m.PointsAwarded.Collect(ch)
	m.BonusesAwarded.Collect(ch)
	m.SoftDeleteRefusals.Collect(ch)
	m.NotificationsSent.Collect(ch)
}

func (m *Metrics) IncidentCreated(kind string) {
	if m == nil {
		return
	}
	m.IncidentsCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) Transition(entity, transition string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(entity, transition).Inc()
}

func (m *Metrics) Refused(entity, reason string) {
	if m == nil {
		return
	}
	m.TransitionRefusals.WithLabelValues(entity, reason).Inc()
}

func (m *Metrics) Points(source string, points int) {
	if m == nil || points <= 0 {
		return
	}
	m.PointsAwarded.WithLabelValues(source).Add(float64(points))
}

func (m *Metrics) Bonus(kind string) {
	if m == nil {
		return
	}
	m.BonusesAwarded.WithLabelValues(kind).Inc()
}

func (m *Metrics) SoftDeleteRefused(entity string) {
	if m == nil {
		return
	}
	m.SoftDeleteRefusals.WithLabelValues(entity).Inc()
}

func (m *Metrics) NotificationSent() {
	if m == nil {
		return
	}
	m.NotificationsSent.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{ErrorHandling: promhttp.HTTPErrorOnError})
}
