package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/services"
)

// abortWithServiceError maps service-layer errors to HTTP error responses.
func abortWithServiceError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	switch {
	case errors.As(err, &validErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": validErr.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, services.ErrRecommendationInactive):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "recommendation is no longer active"})
	case errors.Is(err, services.ErrInsufficientData):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient telemetry data"})
	case errors.Is(err, services.ErrTelemetryUnavailable):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "telemetry store unavailable"})
	default:
		slog.Error("Unexpected service error", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
