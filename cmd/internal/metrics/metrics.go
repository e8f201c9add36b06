// Package metrics owns the Prometheus registry and the collectors the server exports on /metrics.
//
// All recording methods are nil-safe so handlers can run without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studysprint"

// Metrics groups every collector. Construct with New.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	authEvents *prometheus.CounterVec

	allocations    prometheus.Counter
	allocatedItems prometheus.Counter
	casAttempts    prometheus.Histogram
	recorded       *prometheus.CounterVec

	poolLoads *prometheus.CounterVec
}

// New builds a private registry with Go runtime and process collectors plus the app collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status class.",
		}, []string{"route", "method", "class"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Auth operations by event and result.",
		}, []string{"event", "result"}),
		allocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cursor_allocations_total",
			Help:      "Successful cursor allocations.",
		}),
		allocatedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cursor_allocated_items_total",
			Help:      "Question indices handed out.",
		}),
		casAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cursor_cas_attempts",
			Help:      "Compare-and-swap attempts needed per allocation.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 32},
		}),
		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "study_sessions_recorded_total",
			Help:      "Study session record calls by result.",
		}, []string{"result"}),
		poolLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "question_pool_loads_total",
			Help:      "Question pool fetches by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.authEvents,
		m.allocations,
		m.allocatedItems,
		m.casAttempts,
		m.recorded,
		m.poolLoads,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, StatusClass(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// AuthEvent counts an auth operation outcome, e.g. ("login", "fail").
func (m *Metrics) AuthEvent(event, result string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event, result).Inc()
}

// Allocation records one successful allocation of n items after attempts CAS rounds.
func (m *Metrics) Allocation(n, attempts int) {
	if m == nil {
		return
	}
	m.allocations.Inc()
	m.allocatedItems.Add(float64(n))
	if attempts > 0 {
		m.casAttempts.Observe(float64(attempts))
	}
}

// Recorded counts a record call outcome.
func (m *Metrics) Recorded(result string) {
	if m == nil {
		return
	}
	m.recorded.WithLabelValues(result).Inc()
}

// PoolLoad counts a question pool fetch outcome.
func (m *Metrics) PoolLoad(result string) {
	if m == nil {
		return
	}
	m.poolLoads.WithLabelValues(result).Inc()
}

// StatusClass maps 200 -> "2xx". Out-of-range codes map to "unknown".
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
