package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	require.NotNil(t, m)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
	assert.NotNil(t, m.ReservationsTotal)
	assert.NotNil(t, m.DistributedLockDuration)
	assert.NotNil(t, m.OrderTransitionsTotal)
	assert.NotNil(t, m.ReaperOrdersTotal)
	assert.NotNil(t, m.ReaperCycleDuration)
	assert.NotNil(t, m.CouponClaimsTotal)
	assert.NotNil(t, m.NotificationsTotal)
}

func TestNewWithRegistry_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg)

	assert.Panics(t, func() { NewWithRegistry(reg) })
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ReservationsTotal.WithLabelValues("success").Inc()
	m.ReservationsTotal.WithLabelValues("success").Inc()
	m.ReservationsTotal.WithLabelValues("seat_unavailable").Inc()
	m.OrderTransitionsTotal.WithLabelValues("PAID").Inc()
	m.ReaperOrdersTotal.WithLabelValues("cancelled").Add(3)
	m.CouponClaimsTotal.WithLabelValues("quota_exceeded").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ReservationsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReservationsTotal.WithLabelValues("seat_unavailable")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrderTransitionsTotal.WithLabelValues("PAID")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ReaperOrdersTotal.WithLabelValues("cancelled")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CouponClaimsTotal.WithLabelValues("quota_exceeded")))
}

func TestHTTPRequestsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/sessions/:sessionId/seats", "200").Inc()
	m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/reservations", "201").Inc()
	m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/reservations", "409").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "http_requests_total" {
			found = true
			assert.Equal(t, 3, len(f.GetMetric()))
		}
	}
	assert.True(t, found, "http_requests_total metric not found")
}
