// Package metrics exposes workflow and HTTP counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

const namespace = "sales_crm"

// Recorder implements the workflow engine's Recorder on top of Prometheus collectors
type Recorder struct {
	gatherer prometheus.Gatherer

	instancesStarted *prometheus.CounterVec
	actionsExecuted  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewRecorder registers the collectors on registry. Use a fresh
// prometheus.NewRegistry() per process (or per test) to avoid duplicate registration.
func NewRecorder(registry *prometheus.Registry) *Recorder {
	factory := promauto.With(registry)

	return &Recorder{
		gatherer: registry,
		instancesStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "instances_started_total",
				Help:      "Workflow instances started, by definition code",
			},
			[]string{"definition"},
		),
		actionsExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "actions_total",
				Help:      "Workflow actions attempted, by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served, by route and status code",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// InstanceStarted counts a started instance
func (r *Recorder) InstanceStarted(definitionCode string) {
	r.instancesStarted.WithLabelValues(definitionCode).Inc()
}

// ActionExecuted counts an action attempt with its outcome
func (r *Recorder) ActionExecuted(action entity.Action, outcome string) {
	r.actionsExecuted.WithLabelValues(string(action), outcome).Inc()
}

// ObserveRequest records one served HTTP request
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
