package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	fanoutRecipients = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_fanout_recipients_total",
			Help: "Follower notifications inserted, by target type.",
		},
		[]string{"target_type"},
	)

	fanoutTruncations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_fanout_truncations_total",
			Help: "Fan-outs that hit the recipient cap, by target type.",
		},
		[]string{"target_type"},
	)

	outboxSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_outbox_processed_total",
			Help: "Outbox rows processed, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Init registers service metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		fanoutRecipients,
		fanoutTruncations,
		outboxSent,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountFanout records a completed fan-out: inserted recipients and whether
// the recipient cap was hit.
func CountFanout(targetType string, inserted int, truncated bool) {
	if inserted > 0 {
		fanoutRecipients.WithLabelValues(targetType).Add(float64(inserted))
	}
	if truncated {
		fanoutTruncations.WithLabelValues(targetType).Inc()
	}
}

// CountOutbox records an outbox delivery outcome ("sent" or "failed").
func CountOutbox(outcome string, n int) {
	if n > 0 {
		outboxSent.WithLabelValues(outcome).Add(float64(n))
	}
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded.
func CanonicalPath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	if len(parts) >= 5 && parts[1] == "v1" && parts[2] == "admin" && parts[3] == "jurisdictions" {
		parts[4] = ":id"
		return strings.Join(parts, "/")
	}
	return path
}

// statusWriter captures the response code for labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
