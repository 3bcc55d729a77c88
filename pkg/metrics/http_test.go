package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("POST", "/api/v1/runs", "201", 25*time.Millisecond)
	m.Observe("POST", "/api/v1/runs", "201", 30*time.Millisecond)
	m.Observe("GET", "/api/v1/runs/{runID}", "200", 5*time.Millisecond)

	count := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/runs", "201"))
	assert.Equal(t, float64(2), count)
}

func TestObserveOnNilReceiverIsSafe(t *testing.T) {
	var m *HTTPMetrics
	require.NotPanics(t, func() {
		m.Observe("GET", "/health/live", "200", time.Millisecond)
	})

	empty := NewHTTPMetrics(nil)
	require.NotPanics(t, func() {
		empty.Observe("", "", "500", time.Millisecond)
	})
}
