package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/metrics"
	"go.uber.org/zap"
)

// MetricsMiddleware collects HTTP metrics for Prometheus
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		method := c.Request.Method
		// Route template keeps label cardinality bounded (/recipes/:id, not every ID)
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		inFlight := m.HTTPRequestsInFlight.WithLabelValues(path)
		inFlight.Inc()
		defer inFlight.Dec()

		startTime := time.Now()

		c.Next()

		duration := time.Since(startTime).Seconds()
		status := c.Writer.Status()
		// Numeric status code so Grafana queries like status=~"5.." work
		statusStr := strconv.Itoa(status)

		m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		if size := c.Writer.Size(); size > 0 {
			m.HTTPResponseSize.WithLabelValues(method, path, statusStr).Observe(float64(size))
		}

		if status >= http.StatusInternalServerError {
			m.ErrorsTotal.WithLabelValues("http_"+statusStr, path).Inc()
		}

		logger.Log.Debug("HTTP request recorded",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Float64("duration_sec", duration),
		)
	}
}
