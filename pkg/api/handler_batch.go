package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/metrics"
)

// triggerBatchHandler handles POST /api/v1/batch/run.
func (s *Server) triggerBatchHandler(c *gin.Context) {
	result, err := s.scheduler.TriggerNow(c.Request.Context())
	if err != nil {
		metrics.BatchRuns.WithLabelValues("error").Inc()
		abortWithServiceError(c, err)
		return
	}

	metrics.BatchRuns.WithLabelValues("ok").Inc()
	metrics.BatchServices.WithLabelValues("successful").Set(float64(result.Successful))
	metrics.BatchServices.WithLabelValues("failed").Set(float64(result.Failed))
	metrics.BatchServices.WithLabelValues("skipped").Set(float64(result.Skipped))
	c.JSON(http.StatusOK, result)
}

// batchStatusHandler handles GET /api/v1/batch/status.
func (s *Server) batchStatusHandler(c *gin.Context) {
	last := s.scheduler.LastResult()
	if last == nil {
		c.JSON(http.StatusOK, gin.H{"status": "never_run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "idle", "last_run": last})
}
