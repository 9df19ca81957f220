package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/services"
)

type lifecycleRequest struct {
	Actor        string          `json:"actor" binding:"required"`
	Rationale    string          `json:"rationale"`
	Tier         models.TierName `json:"tier"`
	CustomTarget *float64        `json:"custom_target"`
}

func (r lifecycleRequest) toInput(recommendationID string) services.LifecycleInput {
	return services.LifecycleInput{
		RecommendationID: recommendationID,
		Actor:            r.Actor,
		Rationale:        r.Rationale,
		Tier:             r.Tier,
		CustomTarget:     r.CustomTarget,
	}
}

// acceptHandler handles POST /api/v1/recommendations/:id/accept.
func (s *Server) acceptHandler(c *gin.Context) {
	var body lifecycleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	slo, err := s.lifecycle.Accept(c.Request.Context(), body.toInput(c.Param("id")))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, slo)
}

// modifyHandler handles POST /api/v1/recommendations/:id/modify.
func (s *Server) modifyHandler(c *gin.Context) {
	var body lifecycleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	slo, err := s.lifecycle.Modify(c.Request.Context(), body.toInput(c.Param("id")))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, slo)
}

// rejectHandler handles POST /api/v1/recommendations/:id/reject.
func (s *Server) rejectHandler(c *gin.Context) {
	var body lifecycleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := s.lifecycle.Reject(c.Request.Context(), body.toInput(c.Param("id"))); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// activeSLOsHandler handles GET /api/v1/services/:id/slos.
func (s *Server) activeSLOsHandler(c *gin.Context) {
	slos, err := s.lifecycle.GetActiveSLOs(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slos": slos, "total": len(slos)})
}

// auditHandler handles GET /api/v1/services/:id/audit.
func (s *Server) auditHandler(c *gin.Context) {
	entries, err := s.lifecycle.GetAuditHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
}
