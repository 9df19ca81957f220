package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// registerServiceHandler handles POST /api/v1/services.
func (s *Server) registerServiceHandler(c *gin.Context) {
	var svc models.Service
	if err := c.ShouldBindJSON(&svc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	stored, err := s.registry.RegisterService(c.Request.Context(), &svc)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

// getServiceHandler handles GET /api/v1/services/:id.
func (s *Server) getServiceHandler(c *gin.Context) {
	svc, err := s.registry.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

// listServicesHandler handles GET /api/v1/services.
func (s *Server) listServicesHandler(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	filters := models.ServiceFilters{
		Team:        c.Query("team"),
		Criticality: models.Criticality(c.Query("criticality")),
		ServiceType: models.ServiceType(c.Query("service_type")),
	}
	if raw := c.Query("discovered"); raw != "" {
		discovered := raw == "true"
		filters.Discovered = &discovered
	}

	services, total, err := s.registry.ListServices(c.Request.Context(), skip, limit, filters)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"services": services,
		"total":    total,
		"skip":     skip,
		"limit":    limit,
	})
}
