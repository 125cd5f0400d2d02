// Package observability wires logging and Prometheus metrics for the leave
// service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/leave-engine/leave"
)

const namespace = "leave"

// Metrics records coordinator outcomes. It satisfies leave.Recorder.
//
// Each Metrics owns its registry so tests and multiple servers in one
// process never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	submitLatency   *prometheus.HistogramVec
	decisions       *prometheus.CounterVec
	decisionLatency *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
}

var _ leave.Recorder = (*Metrics)(nil)

// NewMetrics registers the leave collectors plus the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "submitted_total",
			Help:      "Submissions by kind and outcome (ok, duplicate, or the error kind).",
		}, []string{"kind", "outcome"}),
		submitLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "submit_duration_seconds",
			Help:      "Time spent validating and persisting a submission.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"kind"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "decisions_total",
			Help:      "Approve, reject and cancel calls by outcome.",
		}, []string{"action", "outcome"}),
		decisionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "decision_duration_seconds",
			Help:      "Time spent applying a decision.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"action"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
	}
}

// ObserveSubmit implements leave.Recorder.
func (m *Metrics) ObserveSubmit(kind leave.Kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(kind), outcome).Inc()
	m.submitLatency.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveDecision implements leave.Recorder.
func (m *Metrics) ObserveDecision(action leave.Action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(action), outcome).Inc()
	m.decisionLatency.WithLabelValues(string(action)).Observe(elapsed.Seconds())
}

// RecordRequest counts a served HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
