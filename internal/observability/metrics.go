package observability

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and campaign runner.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	messagesSentTotal     *prometheus.CounterVec
	messagesFailedTotal   *prometheus.CounterVec
	messageSendDuration   *prometheus.HistogramVec
	messageOpensTotal     prometheus.Counter
	leadsSkippedTotal     *prometheus.CounterVec
	ledgerDuplicatesTotal prometheus.Counter
	passDuration          prometheus.Histogram
	sendsInflight         prometheus.Gauge
	eventsPublishedTotal  *prometheus.CounterVec
}

const metricsNamespace = "drip_engine"

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		messagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_sent_total",
				Help:      "Total number of messages accepted by the gateway by message type.",
			},
			[]string{"type"},
		),
		messagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_failed_total",
				Help:      "Total number of failed send attempts by message type and reason.",
			},
			[]string{"type", "reason"},
		),
		messageSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "message_send_duration_seconds",
				Help:      "Gateway send duration in seconds by message type.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"type"},
		),
		messageOpensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "message_opens_total",
				Help:      "Total number of tracking pixel fetches matched to a message.",
			},
		),
		leadsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "leads_skipped_total",
				Help:      "Campaign leads visited without a send, by reason.",
			},
			[]string{"reason"},
		),
		ledgerDuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ledger_duplicates_total",
				Help:      "Ledger inserts ignored because the (lead, step) entry already existed.",
			},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "campaign_pass_duration_seconds",
				Help:      "Duration of one campaign runner pass.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		sendsInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "sends_inflight",
				Help:      "Current number of in-flight gateway sends.",
			},
		),
		eventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "delivery_events_published_total",
				Help:      "Delivery events handed to the broker by event and result.",
			},
			[]string{"event", "result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.messagesSentTotal,
		m.messagesFailedTotal,
		m.messageSendDuration,
		m.messageOpensTotal,
		m.leadsSkippedTotal,
		m.ledgerDuplicatesTotal,
		m.passDuration,
		m.sendsInflight,
		m.eventsPublishedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware counts requests by route pattern. Scrapes and probes are
// not counted.
func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := routeLabel(c)
		if _, skip := unmeteredRoutes[route]; skip {
			return err
		}

		m.recordHTTPRequest(c.Method(), route, responseStatus(c, err), time.Since(start))
		return err
	}
}

var unmeteredRoutes = map[string]struct{}{
	"/metrics": {},
	"/livez":   {},
	"/readyz":  {},
}

func (m *Metrics) IncMessageSent(messageType string) {
	if m == nil {
		return
	}
	m.messagesSentTotal.WithLabelValues(normalizeLabel(messageType)).Inc()
}

func (m *Metrics) IncMessageFailed(messageType string, reason string) {
	if m == nil {
		return
	}
	m.messagesFailedTotal.WithLabelValues(normalizeLabel(messageType), normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveMessageSendDuration(messageType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.messageSendDuration.WithLabelValues(normalizeLabel(messageType)).Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncMessageOpens() {
	if m == nil {
		return
	}
	m.messageOpensTotal.Inc()
}

func (m *Metrics) IncLeadSkipped(reason string) {
	if m == nil {
		return
	}
	m.leadsSkippedTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncLedgerDuplicate() {
	if m == nil {
		return
	}
	m.ledgerDuplicatesTotal.Inc()
}

func (m *Metrics) ObservePassDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncSendsInflight() {
	if m == nil {
		return
	}
	m.sendsInflight.Inc()
}

func (m *Metrics) DecSendsInflight() {
	if m == nil {
		return
	}
	m.sendsInflight.Dec()
}

func (m *Metrics) IncEventPublished(event string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublishedTotal.WithLabelValues(normalizeLabel(event), result).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

const unmatchedRoute = "unmatched"

// routeLabel keeps label cardinality bounded: tracking tokens and ids stay
// inside the route pattern (`/track/:token`).
func routeLabel(c *fiber.Ctx) string {
	route := c.Route()
	if route == nil || strings.TrimSpace(route.Path) == "" {
		return unmatchedRoute
	}
	return route.Path
}

func responseStatus(c *fiber.Ctx, err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case err != nil:
		return fiber.StatusInternalServerError
	}

	if status := c.Response().StatusCode(); status != 0 {
		return status
	}
	return fiber.StatusOK
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
