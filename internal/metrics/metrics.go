package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Report metrics
	Reports         *prometheus.CounterVec
	SectionLatency  *prometheus.HistogramVec
	SectionFailures *prometheus.CounterVec

	// Ads platform metrics
	AdsRequests *prometheus.CounterVec
	AdsLatency  prometheus.Histogram

	// System metrics
	DBConnections *prometheus.GaugeVec
	RedisLatency  *prometheus.HistogramVec

	// Limiting metrics
	RateLimitHits   *prometheus.CounterVec
	QuotaRejections prometheus.Counter
}

// NewMetrics creates all metrics and registers them with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics and registers them with reg.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// HTTP metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		HTTPLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route"},
		),

		// Report metrics
		Reports: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Analytics reports by outcome",
			},
			[]string{"outcome"}, // ok, degraded, failed
		),
		SectionLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "section_duration_seconds",
				Help:      "Time to fetch and compute one report section",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"section"},
		),
		SectionFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "section_failures_total",
				Help:      "Report sections that could not be computed",
			},
			[]string{"section"},
		),

		// Ads platform metrics
		AdsRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ads_requests_total",
				Help:      "Ads insights HTTP attempts by outcome",
			},
			[]string{"outcome"},
		),
		AdsLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ads_request_duration_seconds",
				Help:      "Ads insights HTTP attempt latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		// System metrics
		DBConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections",
				Help:      "Database connection pool stats",
			},
			[]string{"state"}, // idle, in_use, total
		),
		RedisLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "redis_latency_seconds",
				Help:      "Redis operation latency",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"operation"},
		),

		// Limiting metrics
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"scope"}, // global, ip
		),
		QuotaRejections: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_rejections_total",
				Help:      "Requests rejected by the per-tenant daily quota",
			},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(route string, status int, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latency.Seconds())
}

// RecordReport records how a report request ended.
func (m *Metrics) RecordReport(outcome string) {
	m.Reports.WithLabelValues(outcome).Inc()
}

// ObserveSection records section latency and failure.
func (m *Metrics) ObserveSection(section string, d time.Duration, err error) {
	m.SectionLatency.WithLabelValues(section).Observe(d.Seconds())
	if err != nil {
		m.SectionFailures.WithLabelValues(section).Inc()
	}
}

// ObserveAdsRequest records one ads insights HTTP attempt.
func (m *Metrics) ObserveAdsRequest(outcome string, d time.Duration) {
	m.AdsRequests.WithLabelValues(outcome).Inc()
	m.AdsLatency.Observe(d.Seconds())
}

// ObserveRedis records a Redis operation latency.
func (m *Metrics) ObserveRedis(operation string, d time.Duration) {
	m.RedisLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// UpdateDBStats updates database connection metrics.
func (m *Metrics) UpdateDBStats(idle, inUse, total int) {
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("total").Set(float64(total))
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(scope string) {
	m.RateLimitHits.WithLabelValues(scope).Inc()
}

// RecordQuotaRejection records a request refused by the daily quota.
func (m *Metrics) RecordQuotaRejection() {
	m.QuotaRejections.Inc()
}
