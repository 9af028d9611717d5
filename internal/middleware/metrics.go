package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-attendance/internal/service"
)

// unmatchedRoute labels requests that hit no registered route so arbitrary
// URLs do not become metric label values.
const unmatchedRoute = "unmatched"

// Metrics returns middleware that captures request metrics using the provided service.
// Prometheus scrapes of /metrics are not recorded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
