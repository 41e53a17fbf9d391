// Package metrics exposes the Prometheus collectors for the catalog service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ehvm",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ehvm",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ehvm",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	cacheReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ehvm",
			Subsystem: "cache",
			Name:      "reads_total",
			Help:      "Cache reads by tier and outcome (hit, miss, stale).",
		},
		[]string{"tier", "outcome"},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ehvm",
			Subsystem: "notion",
			Name:      "requests_total",
			Help:      "Upstream workspace API requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	upstreamRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ehvm",
			Subsystem: "notion",
			Name:      "retries_total",
			Help:      "Upstream request attempts beyond the first.",
		},
	)

	parseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ehvm",
			Subsystem: "content",
			Name:      "parse_duration_seconds",
			Help:      "Duration of full page block parses.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		cacheReads,
		upstreamRequests,
		upstreamRetries,
		parseDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordCacheRead records one cache read with its outcome.
func RecordCacheRead(tier, outcome string) {
	cacheReads.WithLabelValues(tier, outcome).Inc()
}

// RecordUpstreamRequest records one completed upstream call.
func RecordUpstreamRequest(endpoint string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordUpstreamRetry counts a retried upstream attempt.
func RecordUpstreamRetry() {
	upstreamRetries.Inc()
}

// RecordParse records the duration of a full page parse.
func RecordParse(duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	parseDuration.Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" || len(parts) == 1 {
		return "/" + parts[0]
	}
	if len(parts) == 2 {
		return "/api/" + parts[1]
	}
	if parts[1] == "apps" {
		if len(parts) == 3 {
			return "/api/apps/:slug"
		}
		return "/api/apps/:slug/" + strings.Join(parts[3:], "/")
	}
	return "/api/" + parts[1]
}
