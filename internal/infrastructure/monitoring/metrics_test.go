package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordAPIRequest("login", "success", time.Millisecond)
		m.RecordStreamEvent("sysstat")
		m.SetStatus(8, 3)
		m.RecordConfigWrite("success", true)
	})
}

func TestRecording(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAPIRequest("config.update", "success", 10*time.Millisecond)
	m.RecordAPIRequest("config.update", "api_error", 10*time.Millisecond)
	m.RecordStreamEvent("sysstat")
	m.RecordStreamEvent("sysstat")
	m.SetStatus(8, 3)
	m.RecordConfigWrite("success", true)
	m.SetBreakerState(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("config.update", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StreamEvents.WithLabelValues("sysstat")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.StatusCode))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PageCode))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigValid))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState))
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
