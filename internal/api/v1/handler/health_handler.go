package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler provides health check endpoints
type HealthHandler struct {
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
	}
}

// SetupRoutes registers handler routes to the router
func (h *HealthHandler) SetupRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", h.healthCheck)
		api.GET("/liveness", h.livenessCheck)
	}
}

// healthCheck confirms the service is running
func (h *HealthHandler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"service":    "clockout-watcher",
		"started_at": h.startTime.Format(time.RFC3339),
		"uptime":     time.Since(h.startTime).String(),
	})
}

// livenessCheck provides a minimal endpoint for external probes
func (h *HealthHandler) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
