package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	rateLimited      prometheus.Counter
	workoutsFinished *prometheus.CounterVec
	aggregateFails   *prometheus.CounterVec
	pendingSyncs     prometheus.Gauge
	plansGenerated   *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry together
// with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liftlog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liftlog_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liftlog_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
		workoutsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liftlog_workouts_finished_total",
				Help: "Finished sessions by outcome",
			},
			[]string{"outcome"},
		),
		aggregateFails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liftlog_aggregate_sync_failures_total",
				Help: "Failed gamification or monthly goal updates",
			},
			[]string{"step"},
		),
		pendingSyncs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liftlog_pending_syncs",
			Help: "Aggregate resyncs waiting in the retry queue",
		}),
		plansGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liftlog_plans_generated_total",
				Help: "Generated training plans by frequency band",
			},
			[]string{"frequency"},
		),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.rateLimited,
		m.workoutsFinished,
		m.aggregateFails,
		m.pendingSyncs,
		m.plansGenerated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one HTTP request. route should be a pattern such as
// "/api/v1/workouts/{id}", not the raw path.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// WorkoutFinished counts a finish attempt: "committed", "pending" or "failed".
func (m *Metrics) WorkoutFinished(outcome string) {
	if m == nil {
		return
	}
	m.workoutsFinished.WithLabelValues(outcome).Inc()
}

// AggregateFailed counts a failed aggregate step: "gamification" or "monthly_goal".
func (m *Metrics) AggregateFailed(step string) {
	if m == nil {
		return
	}
	m.aggregateFails.WithLabelValues(step).Inc()
}

// SetPending sets the size of the retry queue.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pendingSyncs.Set(float64(n))
}

// PlanGenerated counts a generated plan.
func (m *Metrics) PlanGenerated(frequency string) {
	if m == nil {
		return
	}
	m.plansGenerated.WithLabelValues(frequency).Inc()
}
