package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bench controller.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Channel metrics
	ChannelSwitches *prometheus.CounterVec
	ChannelsOn      prometheus.Gauge

	// Terminal metrics
	TerminalSessionsActive prometheus.Gauge
	TerminalSessionsTotal  prometheus.Counter
	TerminalBytesOut       prometheus.Counter
	TerminalBytesIn        prometheus.Counter
	TerminalIntercepts     prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// Bus metrics
	BusPublishes prometheus.Counter

	// Action log metrics
	ActionsLogged prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bench_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bench_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ChannelSwitches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bench_channel_switches_total",
				Help: "Total number of channel state changes",
			},
			[]string{"channel", "state"},
		),
		ChannelsOn: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bench_channels_on",
				Help: "Number of channels currently enabled",
			},
		),

		TerminalSessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bench_terminal_sessions_active",
				Help: "Number of live PTY sessions",
			},
		),
		TerminalSessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bench_terminal_sessions_total",
				Help: "Total number of PTY sessions created",
			},
		),
		TerminalBytesOut: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bench_terminal_bytes_out_total",
				Help: "Bytes streamed from PTYs to remote clients",
			},
		),
		TerminalBytesIn: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bench_terminal_bytes_in_total",
				Help: "Bytes routed from remote clients into PTYs",
			},
		),
		TerminalIntercepts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bench_terminal_intercepts_total",
				Help: "Log pseudo-commands intercepted at the shell prompt",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bench_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bench_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		BusPublishes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bench_bus_publishes_total",
				Help: "Total number of MQTT state publishes",
			},
		),

		ActionsLogged: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bench_actions_logged_total",
				Help: "Total number of action log records written",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bench_uptime_seconds",
				Help: "Backend uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordChannelSwitch records one semantic channel state change.
func (m *Metrics) RecordChannelSwitch(channel string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	m.ChannelSwitches.WithLabelValues(channel, state).Inc()
}

// RecordWSMessage records a WebSocket message.
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}
