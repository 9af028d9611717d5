package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-attendance/internal/service"
	"github.com/noah-isme/smart-attendance/pkg/response"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency for /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// MetricsHandler serves Prometheus metrics, the JSON counter snapshot and
// the health probe.
type MetricsHandler struct {
	metrics *service.MetricsService
	checks  []HealthCheck
}

// NewMetricsHandler constructs a metrics handler. Checks run in order on
// every /health request.
func NewMetricsHandler(metrics *service.MetricsService, checks ...HealthCheck) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, checks: checks}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Snapshot godoc
// @Summary Runtime counters
// @Tags Metrics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// Health reports "ok" when every check passes and 503 with the failing
// checks otherwise.
func (h *MetricsHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	status, code := "ok", http.StatusOK
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			results[check.Name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[check.Name] = "ok"
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}
