package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// API client metrics
	APIRequests  *prometheus.CounterVec
	APIDuration  *prometheus.HistogramVec
	BreakerState prometheus.Gauge

	// Event stream metrics
	StreamEvents     *prometheus.CounterVec
	StreamDropped    *prometheus.CounterVec
	StreamReconnects prometheus.Counter
	StreamConnected  prometheus.Gauge

	// Status metrics
	StatusCode prometheus.Gauge
	PageCode   prometheus.Gauge
	CPUUsage   prometheus.Gauge

	// Config store metrics
	ConfigWrites *prometheus.CounterVec
	ConfigValid  prometheus.Gauge

	// Fake control panel HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics registers a metrics set on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		APIRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premises_client_api_requests_total",
				Help: "Total number of control panel API requests",
			},
			[]string{"endpoint", "outcome"},
		),
		APIDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "premises_client_api_request_duration_seconds",
				Help:    "Control panel API request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		BreakerState: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "premises_client_breaker_state",
				Help: "API circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),

		StreamEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premises_client_stream_events_total",
				Help: "Events received on the status stream by event name",
			},
			[]string{"event"},
		),
		StreamDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premises_client_stream_events_dropped_total",
				Help: "Events dropped because their payload could not be decoded",
			},
			[]string{"event"},
		),
		StreamReconnects: f.NewCounter(
			prometheus.CounterOpts{
				Name: "premises_client_stream_reconnects_total",
				Help: "Number of stream reconnect attempts",
			},
		),
		StreamConnected: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "premises_client_stream_connected",
				Help: "1 while the status stream is connected",
			},
		),

		StatusCode: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "premises_client_status_code",
				Help: "Last status code reported by the control panel (0 = disconnected)",
			},
		),
		PageCode: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "premises_client_page_code",
				Help: "Page code currently selected by the control panel",
			},
		),
		CPUUsage: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "premises_client_server_cpu_usage_percent",
				Help: "Most recent CPU usage sample of the game server",
			},
		),

		ConfigWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premises_client_config_writes_total",
				Help: "Pending configuration writes by outcome",
			},
			[]string{"outcome"},
		),
		ConfigValid: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "premises_client_config_valid",
				Help: "1 when the server reports the pending configuration as valid",
			},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "premises_fake_http_requests_total",
				Help: "Requests served by the fake control panel",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "premises_fake_http_request_duration_seconds",
				Help:    "Fake control panel request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordAPIRequest records one control panel round-trip
func (m *Metrics) RecordAPIRequest(endpoint, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(endpoint, outcome).Inc()
	m.APIDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordStreamEvent counts a received stream event
func (m *Metrics) RecordStreamEvent(event string) {
	if m == nil {
		return
	}
	m.StreamEvents.WithLabelValues(event).Inc()
}

// RecordStreamDrop counts an event whose payload was rejected
func (m *Metrics) RecordStreamDrop(event string) {
	if m == nil {
		return
	}
	m.StreamDropped.WithLabelValues(event).Inc()
}

// SetBreakerState mirrors the API circuit breaker
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}

// IncStreamReconnects counts a reconnect attempt
func (m *Metrics) IncStreamReconnects() {
	if m == nil {
		return
	}
	m.StreamReconnects.Inc()
}

// SetStreamConnected flips the connected gauge
func (m *Metrics) SetStreamConnected(connected bool) {
	if m == nil {
		return
	}
	m.StreamConnected.Set(boolToFloat(connected))
}

// SetStatus mirrors the status store
func (m *Metrics) SetStatus(statusCode, pageCode int) {
	if m == nil {
		return
	}
	m.StatusCode.Set(float64(statusCode))
	m.PageCode.Set(float64(pageCode))
}

// SetCPUUsage mirrors the newest CPU sample
func (m *Metrics) SetCPUUsage(usage float64) {
	if m == nil {
		return
	}
	m.CPUUsage.Set(usage)
}

// RecordConfigWrite records a pending config write and the resulting validity
func (m *Metrics) RecordConfigWrite(outcome string, valid bool) {
	if m == nil {
		return
	}
	m.ConfigWrites.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.ConfigValid.Set(boolToFloat(valid))
	}
}

// RecordHTTPRequest records a request served by the fake control panel
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
