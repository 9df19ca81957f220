// Package api exposes the engine over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/batch"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/config"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/database"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/services"
)

// Server wires the service layer to HTTP routes.
type Server struct {
	cfg       config.ServerConfig
	dbClient  *database.Client
	registry  *services.RegistryService
	ingest    *services.IngestService
	graph     *services.GraphService
	recommend *services.RecommendationService
	constrain *services.ConstraintService
	impact    *services.ImpactService
	lifecycle *services.LifecycleService
	scheduler *batch.Scheduler

	httpServer *http.Server
}

// Deps bundles the server's collaborators.
type Deps struct {
	Config         config.ServerConfig
	DBClient       *database.Client
	Registry       *services.RegistryService
	Ingest         *services.IngestService
	Graph          *services.GraphService
	Recommendation *services.RecommendationService
	Constraint     *services.ConstraintService
	Impact         *services.ImpactService
	Lifecycle      *services.LifecycleService
	Scheduler      *batch.Scheduler
}

// NewServer creates a new API server.
func NewServer(deps Deps) *Server {
	return &Server{
		cfg:       deps.Config,
		dbClient:  deps.DBClient,
		registry:  deps.Registry,
		ingest:    deps.Ingest,
		graph:     deps.Graph,
		recommend: deps.Recommendation,
		constrain: deps.Constraint,
		impact:    deps.Impact,
		lifecycle: deps.Lifecycle,
		scheduler: deps.Scheduler,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), securityHeaders(), httpMetrics())

	router.GET("/health", s.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/services", s.registerServiceHandler)
		v1.GET("/services", s.listServicesHandler)
		v1.GET("/services/:id", s.getServiceHandler)

		v1.POST("/graph/ingest", s.ingestHandler)
		v1.GET("/graph/services/:id/subgraph", s.subgraphHandler)
		v1.GET("/graph/cycles", s.listCyclesHandler)
		v1.PATCH("/graph/cycles/:id", s.updateCycleHandler)

		v1.POST("/services/:id/recommendations", s.generateRecommendationsHandler)
		v1.GET("/services/:id/recommendations", s.getRecommendationsHandler)

		v1.POST("/recommendations/:id/accept", s.acceptHandler)
		v1.POST("/recommendations/:id/modify", s.modifyHandler)
		v1.POST("/recommendations/:id/reject", s.rejectHandler)
		v1.GET("/services/:id/slos", s.activeSLOsHandler)
		v1.GET("/services/:id/audit", s.auditHandler)

		v1.GET("/services/:id/budget", s.budgetHandler)
		v1.GET("/services/:id/achievable", s.achievableHandler)
		v1.GET("/services/:id/impact", s.impactHandler)

		v1.POST("/batch/run", s.triggerBatchHandler)
		v1.GET("/batch/status", s.batchStatusHandler)
	}
	return router
}

// Start begins serving HTTP in a background goroutine.
func (s *Server) Start() {
	s.httpServer = &http.Server{
		Addr:              ":" + s.cfg.HTTPPort,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", s.cfg.HTTPPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
		}
	}()
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
