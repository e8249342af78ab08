// Package observability collects Prometheus metrics for the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus registry and base HTTP metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tahseel_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tahseel_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	registry.MustRegister(requests, duration)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

// WorkflowMetrics counts payment workflow outcomes. All methods are nil-safe
// so tests can run without a registry.
type WorkflowMetrics struct {
	transitions      *prometheus.CounterVec
	conflictsRetried prometheus.Counter
	webhooksRejected prometheus.Counter
}

// NewWorkflowMetrics registers workflow counters on the given registerer.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tahseel_workflow_transitions_total",
		Help: "Invoice status transitions by event kind and resulting status.",
	}, []string{"event", "status"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tahseel_workflow_conflict_retries_total",
		Help: "Optimistic-concurrency conflicts retried by the orchestrator.",
	})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tahseel_webhook_rejected_total",
		Help: "Webhook deliveries rejected before reaching the orchestrator.",
	})
	reg.MustRegister(transitions, conflicts, rejected)
	return &WorkflowMetrics{
		transitions:      transitions,
		conflictsRetried: conflicts,
		webhooksRejected: rejected,
	}
}

// Transition counts one applied status transition.
func (m *WorkflowMetrics) Transition(event, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, status).Inc()
}

// ConflictRetried counts one optimistic-concurrency retry.
func (m *WorkflowMetrics) ConflictRetried() {
	if m == nil {
		return
	}
	m.conflictsRetried.Inc()
}

// WebhookRejected counts one rejected webhook delivery.
func (m *WorkflowMetrics) WebhookRejected() {
	if m == nil {
		return
	}
	m.webhooksRejected.Inc()
}
