// Harrier - Batch fraud analytics for transaction datasets.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/loader"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/report"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/risk"
	"github.com/opensource-finance/harrier/internal/worker"
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
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// One-shot mode: analyze a CSV file and print the report.
	if len(os.Args) > 1 && os.Args[1] == "analyze" {
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: harrier analyze <dataset.csv>")
			os.Exit(2)
		}
		if err := analyzeFile(os.Args[2], cfg.Analysis); err != nil {
			slog.Error("analysis failed", "error", err)
			os.Exit(1)
		}
		return
	}

	serve(cfg)
}

// analyzeFile runs the full pipeline over one CSV file and writes the
// analyst report to stdout.
func analyzeFile(path string, analysisCfg domain.AnalysisConfig) error {
	records, err := loader.ReadFile(path)
	if err != nil {
		return err
	}

	slog.Info("dataset loaded", "path", path, "records", len(records))

	// Small datasets cannot support the configured k.
	if len(records) > 0 && analysisCfg.Clusters > len(records) {
		analysisCfg.Clusters = len(records)
		slog.Warn("clamping cluster count to dataset size", "clusters", analysisCfg.Clusters)
	}

	rep, err := pipeline.Run(context.Background(), records, analysisCfg)
	if err != nil {
		return err
	}

	return report.NewWriter(analysisCfg).Write(os.Stdout, rep)
}

// serve runs the HTTP API with the configured backing services.
func serve(cfg *domain.Config) {
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
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

	// Initialize flag rule engine (rules are configured via PUT /flags)
	flags, err := risk.NewEngine()
	if err != nil {
		slog.Error("failed to initialize flag engine", "error", err)
		os.Exit(1)
	}

	// Initialize async Worker (Pro tier)
	async := cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true"
	var asyncWorker *worker.Worker
	if async {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, cfg.Analysis)

		var tenantIDs []string
		if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, flags, cfg.Analysis, Version, async)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  HARRIER - Batch Fraud Analytics")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /runs                 - Analyze a dataset")
	fmt.Println("    GET    /runs                 - List analysis runs")
	fmt.Println("    GET    /runs/{id}            - Get a run with its report")
	fmt.Println("    DELETE /runs/{id}            - Delete a run")
	fmt.Println("    GET    /runs/{id}/clusters   - Clusters with risk levels")
	fmt.Println("    GET    /runs/{id}/rings      - Detected fraud rings")
	fmt.Println("    GET    /runs/{id}/offenders  - Per-user fraud statistics")
	fmt.Println("    GET    /flags                - List flag rules")
	fmt.Println("    PUT    /flags                - Replace flag rules")
	fmt.Println("    GET    /health               - Health check")
	fmt.Println()
}
