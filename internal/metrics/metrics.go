package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// OrderEventsTotal counts terminal states of order events. outcome is
	// the metafield action on success or the error kind on failure.
	OrderEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_total",
			Help: "Total number of orders/create events by outcome",
		},
		[]string{"source", "outcome"},
	)

	OrderEventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_event_processing_duration_seconds",
			Help:    "Duration of order event processing, including Shopify calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	AnnotationsPerOrder = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_annotations_per_event",
			Help:    "Number of line item annotations written per order",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

// Register adds every collector to reg. Lambda entry points skip it; the
// counters still work unregistered.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		OrderEventsTotal,
		OrderEventDuration,
		AnnotationsPerOrder,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// ObserveOrder records one terminal state.
func ObserveOrder(source, outcome string, started time.Time) {
	OrderEventsTotal.WithLabelValues(source, outcome).Inc()
	OrderEventDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

// Instrument wraps an HTTP handler with request count and duration metrics.
func Instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		httpRequestDuration.WithLabelValues(name, r.Method).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(name, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
