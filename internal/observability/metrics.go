package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "extraction_orchestrator"

// Metrics stores Prometheus collectors used by the API, the orchestrator and
// the session guardian.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	extractorRequestsTotal   *prometheus.CounterVec
	extractorRequestDuration *prometheus.HistogramVec
	batchesTotal             *prometheus.CounterVec
	pollTicksTotal           *prometheus.CounterVec
	recordsConsolidatedTotal prometheus.Counter
	consolidationDuration    prometheus.Histogram
	consolidationInflight    prometheus.Gauge
	authorizationFailures    prometheus.Counter
	sessionExpirations       prometheus.Counter
	handshakesTotal          *prometheus.CounterVec
	exportsTotal             *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		extractorRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractor_requests_total",
				Help:      "Calls made to the extraction service by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		extractorRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extractor_request_duration_seconds",
				Help:      "Extraction service call duration in seconds by endpoint.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"endpoint"},
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Submitted batches by final outcome.",
			},
			[]string{"outcome"},
		),
		pollTicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_ticks_total",
				Help:      "Batch status polls by result.",
			},
			[]string{"result"},
		),
		recordsConsolidatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_consolidated_total",
				Help:      "Extracted records merged into published datasets.",
			},
		),
		consolidationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "consolidation_duration_seconds",
				Help:      "Time spent fetching and merging per-job results.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		consolidationInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "consolidation_inflight_fetches",
				Help:      "Per-job result fetches currently in flight.",
			},
		),
		authorizationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorization_failures_total",
				Help:      "Responses with status 401 or 403 from the extraction service.",
			},
		),
		sessionExpirations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_expirations_total",
				Help:      "Transitions of the session from valid to expired.",
			},
		),
		handshakesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handshakes_total",
				Help:      "Token exchange attempts by result.",
			},
			[]string{"result"},
		),
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Export requests by scope.",
			},
			[]string{"scope"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.extractorRequestsTotal,
		m.extractorRequestDuration,
		m.batchesTotal,
		m.pollTicksTotal,
		m.recordsConsolidatedTotal,
		m.consolidationDuration,
		m.consolidationInflight,
		m.authorizationFailures,
		m.sessionExpirations,
		m.handshakesTotal,
		m.exportsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) ObserveExtractorRequest(endpoint string, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	endpointLabel := normalizeLabel(endpoint)
	m.extractorRequestsTotal.WithLabelValues(endpointLabel, normalizeLabel(outcome)).Inc()
	m.extractorRequestDuration.WithLabelValues(endpointLabel).Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncBatch(outcome string) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncPollTick(result string) {
	if m == nil {
		return
	}
	m.pollTicksTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) AddRecordsConsolidated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsConsolidatedTotal.Add(float64(n))
}

func (m *Metrics) ObserveConsolidationDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.consolidationDuration.Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncConsolidationInFlight() {
	if m == nil {
		return
	}
	m.consolidationInflight.Inc()
}

func (m *Metrics) DecConsolidationInFlight() {
	if m == nil {
		return
	}
	m.consolidationInflight.Dec()
}

func (m *Metrics) IncAuthorizationFailure() {
	if m == nil {
		return
	}
	m.authorizationFailures.Inc()
}

func (m *Metrics) IncSessionExpiration() {
	if m == nil {
		return
	}
	m.sessionExpirations.Inc()
}

func (m *Metrics) IncHandshake(result string) {
	if m == nil {
		return
	}
	m.handshakesTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncExport(scope string) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(normalizeLabel(scope)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func nonNegativeSeconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return d.Seconds()
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
