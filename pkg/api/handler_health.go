package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/database"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health. Only the engine's own database is
// checked; the telemetry store is deliberately excluded so an observability
// outage does not get the engine restarted.
func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.dbClient.SQL())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   healthStatusUnhealthy,
			"version":  version.Full(),
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   healthStatusHealthy,
		"version":  version.Full(),
		"database": dbHealth,
	})
}
