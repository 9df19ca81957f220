package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/metrics"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// ingestHandler handles POST /api/v1/graph/ingest.
func (s *Server) ingestHandler(c *gin.Context) {
	var payload models.IngestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	report, err := s.ingest.Ingest(c.Request.Context(), &payload)
	if err != nil {
		metrics.IngestsTotal.WithLabelValues(string(payload.Source), "error").Inc()
		abortWithServiceError(c, err)
		return
	}
	metrics.IngestsTotal.WithLabelValues(string(payload.Source), "ok").Inc()
	c.JSON(http.StatusOK, report)
}

// subgraphHandler handles GET /api/v1/graph/services/:id/subgraph.
func (s *Server) subgraphHandler(c *gin.Context) {
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "0"))
	direction := models.TraversalDirection(c.DefaultQuery("direction", string(models.DirectionDownstream)))
	includeStale := c.Query("include_stale") == "true"

	subgraph, err := s.graph.GetSubgraph(c.Request.Context(), c.Param("id"), direction, depth, includeStale)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subgraph)
}

// listCyclesHandler handles GET /api/v1/graph/cycles.
func (s *Server) listCyclesHandler(c *gin.Context) {
	cycles, err := s.graph.ListCycles(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	open := 0
	for _, cycle := range cycles {
		if cycle.Status != models.CycleResolved {
			open++
		}
	}
	metrics.OpenCycles.Set(float64(open))
	c.JSON(http.StatusOK, gin.H{"cycles": cycles, "total": len(cycles)})
}

// updateCycleHandler handles PATCH /api/v1/graph/cycles/:id.
func (s *Server) updateCycleHandler(c *gin.Context) {
	var body struct {
		Status models.CycleStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := s.graph.UpdateCycleStatus(c.Request.Context(), c.Param("id"), body.Status); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
