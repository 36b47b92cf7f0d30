// Package metrics holds the prometheus collectors shared by the service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TokenRefreshes counts service-account logins by result (success, failure).
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idp_service_token_refreshes_total",
			Help: "Service-account token refreshes against the identity provider.",
		},
		[]string{"result"},
	)

	// IdPRequests counts identity provider calls by operation and outcome.
	IdPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idp_requests_total",
			Help: "Identity provider requests.",
		},
		[]string{"operation", "outcome"},
	)

	// IdPRequestDuration observes identity provider call latency.
	IdPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idp_request_duration_seconds",
			Help:    "Identity provider request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TokenRefreshes, IdPRequests, IdPRequestDuration,
			httpInFlight, httpRequestsTotal, httpRequestDuration,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveIdP records one identity provider call.
func ObserveIdP(operation, outcome string, start time.Time) {
	IdPRequests.WithLabelValues(operation, outcome).Inc()
	IdPRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Instrument records request count and latency labelled by the chi route
// pattern so path parameters do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
