// Superstore Analytics - Retail metrics that answer in milliseconds.
// Copyright (c) 2026 superstore-analytics
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/api"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/bus"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/cache"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/domain"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/loader"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/metrics"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/repository"
	"github.com/hoffercarolina97-ship-it/superstore-analytics/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("SUPERSTORE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting superstore",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := loadConfig()

	slog.Info("configuration loaded",
		"mode", cfg.Mode,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Metrics Engine
	engine, err := metrics.NewEngine(cfg.Engine.MaxGroupWorkers)
	if err != nil {
		slog.Error("failed to initialize metrics engine", "error", err)
		os.Exit(1)
	}
	slog.Info("metrics engine initialized", "measures", len(metrics.Catalog()))

	// Initialize CSV Loader
	ldr := loader.New(repo, cfg.Loader)

	// Datasets served by this instance (from environment or default)
	datasets := []string{domain.DefaultDataset}
	if envDatasets := os.Getenv("SUPERSTORE_DATASETS"); envDatasets != "" {
		datasets = strings.Split(envDatasets, ",")
	}

	// Load startup facts if a CSV is configured and the dataset is empty
	if cfg.Loader.CSVPath != "" {
		if err := seedFacts(ctx, repo, ldr, datasets[0], cfg.Loader.CSVPath); err != nil {
			slog.Error("failed to load startup facts", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Refresh Worker
	refreshWorker := worker.NewWorker(busImpl, repo, cacheImpl, engine, ldr)

	// Build the initial snapshot for each dataset. A dataset with no
	// facts yet is not fatal: queries return 503 until the first load
	// and refresh.
	for _, datasetID := range datasets {
		result, err := refreshWorker.Refresh(ctx, datasetID, &domain.RefreshRequest{
			DatasetID:   datasetID,
			RequestedBy: "startup",
		})
		if err != nil {
			slog.Warn("no snapshot built at startup",
				"dataset_id", datasetID,
				"error", err,
			)
			continue
		}
		slog.Info("startup snapshot built",
			"dataset_id", datasetID,
			"snapshot_version", result.SnapshotVersion,
			"rows", result.Rows,
		)
	}

	if err := refreshWorker.Start(worker.Config{DatasetIDs: datasets}); err != nil {
		slog.Error("failed to start refresh worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	reportTTL := time.Duration(cfg.Engine.CacheTTL) * time.Second
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, Version, reportTTL)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("superstore is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop refresh worker first
	if err := refreshWorker.Stop(); err != nil {
		slog.Error("failed to stop refresh worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("superstore shutdown complete")
}

// loadConfig selects the deployment profile and applies environment
// overrides. SUPERSTORE_MODE=distributed switches to postgres + redis +
// NATS; everything else tweaks a single field.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("SUPERSTORE_MODE") == "distributed" {
		cfg = domain.DistributedConfig()
		slog.Info("running in distributed mode")
	}

	if v := os.Getenv("SUPERSTORE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring invalid SUPERSTORE_PORT", "value", v)
		} else {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SUPERSTORE_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("SUPERSTORE_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("SUPERSTORE_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("SUPERSTORE_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("SUPERSTORE_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("SUPERSTORE_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("SUPERSTORE_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("SUPERSTORE_CSV"); v != "" {
		cfg.Loader.CSVPath = v
	}
	return cfg
}

// seedFacts loads the startup CSV into a dataset that has no facts yet.
// A populated dataset is left alone so restarts do not duplicate rows;
// use POST /refresh with a csv: source to replace facts explicitly.
func seedFacts(ctx context.Context, repo domain.Repository, ldr *loader.Loader, datasetID, path string) error {
	count, err := repo.CountOrderLines(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("failed to count order lines: %w", err)
	}
	if count > 0 {
		slog.Info("dataset already populated, skipping startup load",
			"dataset_id", datasetID,
			"rows", count,
		)
		return nil
	}

	audit, err := ldr.Load(ctx, datasetID, path)
	if err != nil {
		return err
	}
	slog.Info("startup facts loaded",
		"dataset_id", datasetID,
		"rows", audit.Rows,
		"skipped", audit.Skipped,
	)
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔════════════════════════════════════════════╗")
	fmt.Println("  ║              📊 SUPERSTORE                 ║")
	fmt.Println("  ║           Retail Metrics Engine            ║")
	fmt.Println("  ║        Every measure, one snapshot.        ║")
	fmt.Println("  ╚════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Mode:     %s\n", cfg.Mode)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /query                  - Evaluate measures in a filter context")
	fmt.Println("    GET  /measures               - List the measure catalog")
	fmt.Println("    GET  /customers/{id}/profile - RFM profile for a customer")
	fmt.Println("    GET  /customers/segments     - Customer counts per RFM segment")
	fmt.Println("    GET  /calendar               - Calendar dimension for the snapshot")
	fmt.Println("    GET  /snapshot               - Snapshot version and date range")
	fmt.Println("    POST /refresh                - Rebuild the dataset snapshot")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}
