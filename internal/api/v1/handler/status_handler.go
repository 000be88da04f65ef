package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"clockout-watcher/internal/common"
	authdomain "clockout-watcher/internal/features/auth/domain"
	clockoutdomain "clockout-watcher/internal/features/clockout/domain"
)

// WatcherStatusProvider exposes a snapshot of the poll loop
type WatcherStatusProvider interface {
	Status() clockoutdomain.WatcherStatus
}

// StatusHandler handles API requests for watcher and token status
type StatusHandler struct {
	watcher   WatcherStatusProvider
	refresher authdomain.RefreshProvider
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(watcher WatcherStatusProvider, refresher authdomain.RefreshProvider) *StatusHandler {
	return &StatusHandler{
		watcher:   watcher,
		refresher: refresher,
	}
}

// SetupRoutes configures the routes for this handler
func (h *StatusHandler) SetupRoutes(router *gin.Engine) {
	statusGroup := router.Group("/api/v1/status")
	{
		statusGroup.GET("/watcher", h.getWatcherStatus)
		statusGroup.GET("/token", h.getTokenStatus)
	}
}

// getWatcherStatus returns a snapshot of the poll loop
func (h *StatusHandler) getWatcherStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.watcher.Status())
}

// getTokenStatus returns token metadata. The token value itself is
// never exposed.
func (h *StatusHandler) getTokenStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	token, err := h.refresher.CurrentToken(ctx)
	if err != nil {
		if common.IsNoToken(err) {
			c.JSON(http.StatusOK, gin.H{
				"present": false,
			})
			return
		}
		log.Printf("Error retrieving token status: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to retrieve token status",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"present":   !token.IsZero(),
		"issued_at": token.IssuedAt,
		"source":    token.Source,
	})
}
