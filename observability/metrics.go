package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects report engine and API metrics.
//
// Every recording method is safe on a nil *Metrics, so components can take
// metrics as an optional dependency.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.TurnStarted()
//	defer metrics.TurnFinished("ok", time.Since(start).Seconds())
type Metrics struct {
	// TurnCounter counts generate turns.
	// Labels: status (ok|error|rejected)
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures turn latency in seconds.
	// Buckets: 1s, 2s, 5s, 10s, 30s, 60s, 120s, 300s
	TurnDuration prometheus.Histogram

	// ActiveTurns is a gauge of turns currently running.
	ActiveTurns prometheus.Gauge

	// BlockCounter counts report blocks created.
	// Labels: type (text|kpi|table|chart)
	BlockCounter *prometheus.CounterVec

	// ImageCounter counts images surfaced to callers.
	// Labels: source (inline|store)
	ImageCounter *prometheus.CounterVec

	// DuplicateArtifactCounter counts artifact deliveries dropped as already seen.
	DuplicateArtifactCounter prometheus.Counter

	// ExpiredTitleCounter counts pending chart titles dropped by expiry or by the
	// queue bound.
	ExpiredTitleCounter prometheus.Counter

	// SweepErrorCounter counts artifact store sweeps that failed.
	SweepErrorCounter prometheus.Counter

	// ToolCallCounter counts tool calls observed in runtime streams.
	// Labels: tool_name
	ToolCallCounter *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, route, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg. Pass a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TurnCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportmesh_turns_total",
				Help: "Total number of generate turns by status",
			},
			[]string{"status"},
		),

		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reportmesh_turn_duration_seconds",
				Help:    "Duration of generate turns in seconds",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
			},
		),

		ActiveTurns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reportmesh_active_turns",
				Help: "Number of generate turns currently running",
			},
		),

		BlockCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportmesh_blocks_total",
				Help: "Total number of report blocks created by type",
			},
			[]string{"type"},
		),

		ImageCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportmesh_images_total",
				Help: "Total number of images surfaced by source",
			},
			[]string{"source"},
		),

		DuplicateArtifactCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reportmesh_duplicate_artifacts_total",
				Help: "Total number of artifact deliveries dropped as duplicates",
			},
		),

		ExpiredTitleCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reportmesh_expired_chart_titles_total",
				Help: "Total number of pending chart titles dropped before an image arrived",
			},
		),

		SweepErrorCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reportmesh_sweep_errors_total",
				Help: "Total number of failed artifact store sweeps",
			},
		),

		ToolCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportmesh_tool_calls_total",
				Help: "Total number of tool calls observed by tool name",
			},
			[]string{"tool_name"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reportmesh_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"method", "route", "status_code"},
		),
	}
}

// TurnStarted marks a turn as running.
func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}

	m.ActiveTurns.Inc()
}

// TurnFinished records a finished turn.
func (m *Metrics) TurnFinished(status string, durationSeconds float64) {
	if m == nil {
		return
	}

	m.ActiveTurns.Dec()
	m.TurnCounter.WithLabelValues(status).Inc()
	m.TurnDuration.Observe(durationSeconds)
}

// TurnRejected records a turn refused before it started.
func (m *Metrics) TurnRejected() {
	if m == nil {
		return
	}

	m.TurnCounter.WithLabelValues("rejected").Inc()
}

// BlockCreated records a new report block.
func (m *Metrics) BlockCreated(blockType string) {
	if m == nil {
		return
	}

	m.BlockCounter.WithLabelValues(blockType).Inc()
}

// ImageSurfaced records an image emitted to the caller.
func (m *Metrics) ImageSurfaced(source string) {
	if m == nil {
		return
	}

	m.ImageCounter.WithLabelValues(source).Inc()
}

// DuplicateArtifact records a deduplicated artifact delivery.
func (m *Metrics) DuplicateArtifact() {
	if m == nil {
		return
	}

	m.DuplicateArtifactCounter.Inc()
}

// TitlesExpired records dropped pending chart titles.
func (m *Metrics) TitlesExpired(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.ExpiredTitleCounter.Add(float64(n))
}

// SweepFailed records a failed artifact store sweep.
func (m *Metrics) SweepFailed() {
	if m == nil {
		return
	}

	m.SweepErrorCounter.Inc()
}

// ToolCalled records a tool call seen in a runtime stream.
func (m *Metrics) ToolCalled(toolName string) {
	if m == nil {
		return
	}

	m.ToolCallCounter.WithLabelValues(toolName).Inc()
}

// RecordHTTPRequest records one HTTP API request.
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}

	m.HTTPRequestDuration.WithLabelValues(method, route, statusCode).Observe(durationSeconds)
}
