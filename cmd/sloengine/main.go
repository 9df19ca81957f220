// sloengine serves the SLO recommendation HTTP API and runs the periodic
// batch recomputation and maintenance sweeps.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/api"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/batch"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/config"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/database"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/services"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/store/postgres"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/telemetry"
	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	var configDir string

	root := &cobra.Command{
		Use:           "sloengine",
		Short:         "SLO recommendation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")

	root.AddCommand(
		serveCmd(&configDir),
		batchCmd(&configDir),
		sweepCmd(&configDir),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg       *config.Config
	dbClient  *database.Client
	pg        *postgres.Store
	stores    *store.Stores
	provider  telemetry.Provider
	recommend *services.RecommendationService
	runner    *batch.Runner
}

// bootstrap loads configuration, connects the database, and wires the
// service graph.
func bootstrap(ctx context.Context, configDir string) (*app, error) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("initialize configuration: %w", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	slog.Info("Connected to PostgreSQL database")

	pg := postgres.New(dbClient)
	stores := &pg.Stores

	provider, err := telemetry.NewPrometheusProvider(cfg.Telemetry.PrometheusURL, cfg.Telemetry.Timeout)
	if err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("create telemetry provider: %w", err)
	}

	clock := store.SystemClock{}
	recommend := services.NewRecommendationService(stores, provider, cfg.Recommendation, clock)
	runner := batch.NewRunner(stores, recommend, cfg.Batch, clock)

	return &app{
		cfg:       cfg,
		dbClient:  dbClient,
		pg:        pg,
		stores:    stores,
		provider:  provider,
		recommend: recommend,
		runner:    runner,
	}, nil
}

func (a *app) close() {
	if err := a.dbClient.Close(); err != nil {
		slog.Error("Error closing database client", "error", err)
	}
}

func serveCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with background batch and sweep loops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			slog.Info("Starting sloengine", "version", version.Full(), "config_dir", *configDir)

			a, err := bootstrap(ctx, *configDir)
			if err != nil {
				return err
			}
			defer a.close()

			clock := store.SystemClock{}
			scheduler := batch.NewScheduler(a.runner, a.cfg.Batch)
			scheduler.Start(ctx)
			defer scheduler.Stop()

			sweeper := batch.NewSweeper(a.stores, a.cfg.Graph, clock)
			sweeper.Start(ctx)
			defer sweeper.Stop()

			server := api.NewServer(api.Deps{
				Config:         a.cfg.Server,
				DBClient:       a.dbClient,
				Registry:       services.NewRegistryService(a.stores),
				Ingest:         services.NewIngestService(a.pg, clock),
				Graph:          services.NewGraphService(a.stores, a.cfg.Graph, clock),
				Recommendation: a.recommend,
				Constraint:     services.NewConstraintService(a.stores, a.provider, a.cfg.Recommendation, clock),
				Impact:         services.NewImpactService(a.stores, a.provider, a.cfg.Recommendation, a.cfg.Graph, clock),
				Lifecycle:      services.NewLifecycleService(a.pg, a.stores, clock),
				Scheduler:      scheduler,
			})
			server.Start()

			slog.Info("sloengine started successfully", "http_port", a.cfg.Server.HTTPPort)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			sig := <-sigCh
			slog.Info("Shutdown signal received", "signal", sig)

			if err := server.Shutdown(context.Background()); err != nil {
				slog.Error("HTTP server shutdown failed", "error", err)
			}
			return nil
		},
	}
}

func batchCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Run one batch recomputation over every eligible service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), *configDir)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func sweepCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the stale-edge and recommendation-expiry sweeps once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), *configDir)
			if err != nil {
				return err
			}
			defer a.close()

			batch.NewSweeper(a.stores, a.cfg.Graph, store.SystemClock{}).SweepOnce(cmd.Context())
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}
