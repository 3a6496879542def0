package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// CMSFetchCounter outcome: ok, empty, error
	CMSFetchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_fetch_total",
			Help: "Directus item fetches by collection and outcome",
		},
		[]string{"collection", "outcome"},
	)

	ResultCalculations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_calculations_total",
			Help: "Result calculations by outcome",
		},
		[]string{"outcome"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Open notification WebSocket connections",
		},
	)

	ContentChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_changes_total",
			Help: "CMS collection changes detected by the notifier",
		},
		[]string{"collection"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(CMSFetchCounter)
	prometheus.MustRegister(ResultCalculations)
	prometheus.MustRegister(WSConnections)
	prometheus.MustRegister(ContentChanges)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
