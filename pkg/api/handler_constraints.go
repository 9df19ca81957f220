package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// budgetHandler handles GET /api/v1/services/:id/budget?target=99.9.
func (s *Server) budgetHandler(c *gin.Context) {
	target, err := strconv.ParseFloat(c.Query("target"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'target' must be a number"})
		return
	}

	breakdown, err := s.constrain.Budget(c.Request.Context(), c.Param("id"), target)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

// achievableHandler handles GET /api/v1/services/:id/achievable?target=99.99.
func (s *Server) achievableHandler(c *gin.Context) {
	target, err := strconv.ParseFloat(c.Query("target"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'target' must be a number"})
		return
	}

	check, err := s.constrain.CheckAchievable(c.Request.Context(), c.Param("id"), target)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// impactHandler handles GET /api/v1/services/:id/impact?proposed=99.5.
func (s *Server) impactHandler(c *gin.Context) {
	proposed, err := strconv.ParseFloat(c.Query("proposed"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'proposed' must be a number"})
		return
	}

	report, err := s.impact.Analyze(c.Request.Context(), c.Param("id"), proposed)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
