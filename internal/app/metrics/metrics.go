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
			Namespace: "purchase_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "purchase_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "purchase_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	quoteRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "purchase_layer",
			Subsystem: "pricing",
			Name:      "quotes_total",
			Help:      "Total number of price quotes computed.",
		},
	)

	flowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "purchase_layer",
			Subsystem: "flow",
			Name:      "transitions_total",
			Help:      "Total number of purchase flow transitions by event.",
		},
		[]string{"event"},
	)

	chainCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "purchase_layer",
			Subsystem: "chain",
			Name:      "contract_calls_total",
			Help:      "Total number of contract invocations.",
		},
		[]string{"method", "success"},
	)

	chainCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "purchase_layer",
			Subsystem: "chain",
			Name:      "contract_call_duration_seconds",
			Help:      "Duration of contract invocations including confirmation waits.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~3.5m
		},
		[]string{"method"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		quoteRequests,
		flowTransitions,
		chainCalls,
		chainCallDuration,
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

// RecordQuote counts a computed price quote.
func RecordQuote() {
	quoteRequests.Inc()
}

// RecordFlowTransition counts a purchase flow transition by its event name.
func RecordFlowTransition(event string) {
	if event == "" {
		event = "unknown"
	}
	flowTransitions.WithLabelValues(event).Inc()
}

// RecordChainCall records metrics for a contract invocation.
func RecordChainCall(method string, duration time.Duration, success bool) {
	if method == "" {
		method = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	result := "false"
	if success {
		result = "true"
	}
	chainCalls.WithLabelValues(method, result).Inc()
	chainCallDuration.WithLabelValues(method).Observe(duration.Seconds())
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
	if len(parts) == 0 {
		return "/"
	}
	if parts[0] != "purchases" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/purchases"
	}
	if len(parts) == 2 {
		return "/purchases/:id"
	}
	return "/purchases/:id/" + parts[2]
}
