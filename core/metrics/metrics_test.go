package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.IncidentCreated("PA")
	m.Transition("incident", "start_work")
	m.Transition("incident", "start_work")
	m.Refused("incident", "incidents.notAssignee")
	m.Points("incident", 2)
	m.Points("weekly", 0)
	m.Bonus("weekly")
	m.SoftDeleteRefused("incidents")
	m.NotificationSent()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.IncidentsCreated.WithLabelValues("PA")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Transitions.WithLabelValues("incident", "start_work")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransitionRefusals.WithLabelValues("incident", "incidents.notAssignee")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PointsAwarded.WithLabelValues("incident")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PointsAwarded.WithLabelValues("weekly")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BonusesAwarded.WithLabelValues("weekly")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SoftDeleteRefusals.WithLabelValues("incidents")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsSent))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncidentCreated("OSE")
		m.Transition("planaction", "close_work")
		m.Points("incident", 2)
		m.NotificationSent()
	})
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerExposesCounters(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	m.Bonus("monthly")
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `worksafety_reward_bonuses_awarded_total{bonus_type="monthly"} 1`))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}
