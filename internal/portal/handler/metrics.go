package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fraudlensRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudlens_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	fraudlensRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fraudlens_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	fraudlensScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudlens_scans_total",
		Help: "Total URL scans by resulting risk level (or error).",
	}, []string{"result"})

	fraudlensUpstreamChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudlens_upstream_checks_total",
		Help: "Total analysis-service health probes by result.",
	}, []string{"result"})

	fraudlensAlertDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudlens_alert_deliveries_total",
		Help: "Total high-risk alert deliveries by success status.",
	}, []string{"status"})
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

		fraudlensRequestsTotal.WithLabelValues(method, path, status).Inc()
		fraudlensRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordScanResult records a completed (or failed) scan by risk level.
func RecordScanResult(result string) {
	fraudlensScansTotal.WithLabelValues(result).Inc()
}

// RecordUpstreamCheck records an analysis-service health probe result.
func RecordUpstreamCheck(success bool) {
	if success {
		fraudlensUpstreamChecksTotal.WithLabelValues("success").Inc()
	} else {
		fraudlensUpstreamChecksTotal.WithLabelValues("failure").Inc()
	}
}

// RecordAlertDelivery records a high-risk alert delivery attempt.
func RecordAlertDelivery(success bool) {
	if success {
		fraudlensAlertDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		fraudlensAlertDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
