package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors exported on /metrics.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	guardRejections *prometheus.CounterVec
	breaches        prometheus.Counter
	broadcasts      *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_errors_total",
			Help: "Total number of failed HTTP requests by error code",
		}, []string{"route", "method", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_ticket_operations_total",
			Help: "Ticket lifecycle operations by outcome",
		}, []string{"operation", "result"}),
		guardRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_guard_rejections_total",
			Help: "Writes rejected by the concurrency guard",
		}, []string{"operation", "code"}),
		breaches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "helpdesk_sla_breaches_marked_total",
			Help: "Tickets marked breached by the sweeper",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_change_broadcasts_total",
			Help: "Ticket change signals published",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.requests, m.requestDuration, m.errors, m.transitions, m.guardRejections, m.breaches, m.broadcasts)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordOperation counts lifecycle operations; result is "ok" or an error code.
func (m *Metrics) RecordOperation(operation, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(operation, result).Inc()
}

// RecordGuardRejection implements guard.Recorder.
func (m *Metrics) RecordGuardRejection(operation, code string) {
	if m == nil {
		return
	}
	m.guardRejections.WithLabelValues(operation, code).Inc()
}

// RecordBreaches counts tickets marked breached.
func (m *Metrics) RecordBreaches(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.breaches.Add(float64(n))
}

// RecordBroadcast counts published change signals.
func (m *Metrics) RecordBroadcast(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.broadcasts.WithLabelValues(status).Inc()
}
