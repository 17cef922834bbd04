// Package metrics exposes Prometheus collectors for the scraping service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapeAcquisitionsTotal    *prometheus.CounterVec
	scrapeAttemptsTotal        *prometheus.CounterVec
	scrapeAttemptDuration      *prometheus.HistogramVec
	scrapeGovernorWaitSeconds  prometheus.Histogram
	scrapePacingDelaySeconds   *prometheus.HistogramVec
	scrapeActiveRequests       prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times; every observe helper calls it, so collectors are live before first
// use.
func Init() {
	once.Do(func() {
		scrapeAcquisitionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_acquisitions_total",
				Help: "Total acquisitions completed, labeled by winning strategy and status.",
			},
			[]string{"strategy", "status"},
		)

		scrapeAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrape_attempts_total",
				Help: "Total fetch attempts, labeled by fetcher kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		scrapeAttemptDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_attempt_duration_seconds",
				Help:    "Histogram of individual fetch attempt durations, labeled by kind.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		)

		scrapeGovernorWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scrape_governor_wait_seconds",
				Help:    "Histogram of waits for a global concurrency slot.",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		scrapePacingDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scrape_pacing_delay_seconds",
				Help:    "Histogram of per-host pacing waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		scrapeActiveRequests = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scrape_active_requests",
				Help: "Number of acquisitions currently in flight.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL or host string.
// It returns "unknown" when nothing usable can be parsed.
func SanitizeHost(raw string) string {
	if raw == "" {
		return "unknown"
	}
	if !strings.HasPrefix(raw, "http") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveAcquisition counts a completed acquisition.
func ObserveAcquisition(strategy, status string) {
	Init()
	if strategy == "" {
		strategy = "none"
	}
	scrapeAcquisitionsTotal.WithLabelValues(strategy, status).Inc()
}

// ObserveAttempt records one fetch attempt.
func ObserveAttempt(kind, outcome string, duration time.Duration) {
	Init()
	scrapeAttemptsTotal.WithLabelValues(kind, outcome).Inc()
	scrapeAttemptDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveGovernorWait records the wait for a global concurrency slot.
func ObserveGovernorWait(duration time.Duration) {
	Init()
	scrapeGovernorWaitSeconds.Observe(duration.Seconds())
}

// ObservePacingDelay records a per-host pacing wait.
func ObservePacingDelay(host string, duration time.Duration) {
	Init()
	scrapePacingDelaySeconds.WithLabelValues(SanitizeHost(host)).Observe(duration.Seconds())
}

// IncActiveRequests increments the in-flight acquisitions gauge.
func IncActiveRequests() {
	Init()
	scrapeActiveRequests.Inc()
}

// DecActiveRequests decrements the in-flight acquisitions gauge.
func DecActiveRequests() {
	Init()
	scrapeActiveRequests.Dec()
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
