package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one service. All methods are
// safe on a nil receiver.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	events      *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry labelled with service.
func NewMetrics(service string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, registry))
	return &Metrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "HTTP requests that ended in a domain error, by error code",
		}, []string{"code"}),
		rpcCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rpc_calls_total",
			Help: "Broker request-reply calls by pattern and outcome",
		}, []string{"pattern", "outcome"}),
		rpcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpc_call_duration_seconds",
			Help:    "Broker request-reply round-trip latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"pattern"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "User lifecycle events by type and outcome",
		}, []string{"event", "outcome"}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(code).Inc()
}

// RecordRPC records one request-reply round trip.
func (m *Metrics) RecordRPC(pattern, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(pattern, outcome).Inc()
	m.rpcDuration.WithLabelValues(pattern).Observe(duration.Seconds())
}

// RecordEvent records a published or consumed event.
func (m *Metrics) RecordEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	if m == nil {
		return func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) }
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
