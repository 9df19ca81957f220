package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/metrics"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// generateRecommendationsHandler handles POST /api/v1/services/:id/recommendations.
func (s *Server) generateRecommendationsHandler(c *gin.Context) {
	start := time.Now()
	set, err := s.recommend.Recommend(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	for _, rec := range set.Recommendations {
		metrics.RecommendationsGenerated.WithLabelValues(string(rec.SLIType)).Inc()
	}
	c.JSON(http.StatusCreated, set)
}

// getRecommendationsHandler handles GET /api/v1/services/:id/recommendations.
// With force_regenerate=true the pipeline runs first and the fresh active rows
// are returned.
func (s *Server) getRecommendationsHandler(c *gin.Context) {
	var sliType *models.SLIType
	if raw := c.Query("sli_type"); raw != "" {
		t := models.SLIType(raw)
		if !t.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sli_type " + raw})
			return
		}
		sliType = &t
	}

	if c.Query("force_regenerate") == "true" {
		if _, err := s.recommend.Recommend(c.Request.Context(), c.Param("id")); err != nil {
			abortWithServiceError(c, err)
			return
		}
	}

	recs, err := s.lifecycle.GetRecommendations(c.Request.Context(), c.Param("id"), sliType)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs, "total": len(recs)})
}
