// Package metrics provides Prometheus metrics for signed links, notification
// delivery and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accounts "github.com/goliatone/go-accounts"
)

const namespace = "accounts"

// Metrics implements accounts.Observer on top of Prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	linksIssued   *prometheus.CounterVec
	linksChecked  *prometheus.CounterVec
	notifications *prometheus.CounterVec

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ accounts.Observer = (*Metrics)(nil)

// New registers the collectors on a fresh registry, which also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{gatherer: g}

	m.linksIssued = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signed_links_issued_total",
		Help:      "Total signed links issued.",
	}, []string{"kind"})

	m.linksChecked = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signed_links_checked_total",
		Help:      "Total signed links presented, by outcome.",
	}, []string{"kind", "result"})

	m.notifications = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_delivered_total",
		Help:      "Total notification deliveries, by channel and outcome.",
	}, []string{"channel", "type", "result"})

	m.requestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests made.",
	}, []string{"method", "route", "code"})

	m.requestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "The HTTP request latencies in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	return m
}

func (m *Metrics) LinkIssued(kind accounts.LinkKind) {
	m.linksIssued.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) LinkChecked(kind accounts.LinkKind, result string) {
	m.linksChecked.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) NotificationDelivered(channel accounts.Channel, notificationType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(string(channel), notificationType, result).Inc()
}

// Middleware records request counts and latencies by route pattern. Errors
// are rendered here through the app error handler so the final status is known.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		route := c.Route().Path
		method := c.Method()
		status := strconv.Itoa(c.Response().StatusCode())
		m.requestsTotal.WithLabelValues(method, route, status).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return nil
	}
}

// Handler serves the exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
