// Package httpx carries HTTP middleware shared by the API server:
// Prometheus instrumentation and per-IP rate limiting.
package httpx

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	aegisRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	aegisRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aegis_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	aegisSimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_simulations_total",
		Help: "Total simulation evaluations by decision outcome.",
	}, []string{"outcome"})

	aegisDedupLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aegis_dedup_lookup_failures_total",
		Help: "Dedup history lookups that failed and were treated as novel.",
	})

	aegisWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aegis_webhook_deliveries_total",
		Help: "Total webhook deliveries by success status.",
	}, []string{"status"})

	aegisDevicesTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aegis_devices_total",
		Help: "Enrolled devices by status.",
	}, []string{"status"})

	aegisDevicesMarkedOffline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aegis_devices_marked_offline_total",
		Help: "Devices marked offline by the liveness sweeper.",
	})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		aegisRequestsTotal.WithLabelValues(method, path, status).Inc()
		aegisRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordDecision records the outcome of one simulation evaluation.
func RecordDecision(alert, suppressed bool) {
	switch {
	case suppressed:
		aegisSimulationsTotal.WithLabelValues("suppressed").Inc()
	case alert:
		aegisSimulationsTotal.WithLabelValues("alert").Inc()
	default:
		aegisSimulationsTotal.WithLabelValues("clean").Inc()
	}
}

// RecordDedupLookupFailure records a failed dedup lookup (fail-open path).
func RecordDedupLookupFailure() {
	aegisDedupLookupFailures.Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		aegisWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		aegisWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordSweep records the result of one liveness sweep.
func RecordSweep(markedOffline int) {
	aegisDevicesMarkedOffline.Add(float64(markedOffline))
}

// SetDevicesGauge sets the device count gauge for a given status.
func SetDevicesGauge(status string, count float64) {
	aegisDevicesTotal.WithLabelValues(status).Set(count)
}
