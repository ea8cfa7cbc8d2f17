// Kestrel - Loan matching between borrowers and lender programs.
// Copyright (c) 2025 opensource.credit
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-credit/kestrel/internal/api"
	"github.com/opensource-credit/kestrel/internal/bus"
	"github.com/opensource-credit/kestrel/internal/cache"
	"github.com/opensource-credit/kestrel/internal/domain"
	"github.com/opensource-credit/kestrel/internal/engine"
	"github.com/opensource-credit/kestrel/internal/matcher"
	"github.com/opensource-credit/kestrel/internal/metrics"
	"github.com/opensource-credit/kestrel/internal/repository"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration (defaults -> kestrel.yaml -> KESTREL_* env)
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
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

	// Initialize scoring engine and metrics
	eng := engine.New(logger)
	collector := metrics.NewCollector()

	// Initialize matcher service and its recompute worker. The worker runs
	// in every tier: the community channel bus feeds it in-process.
	svc := matcher.NewService(repo, cacheImpl, eng, collector, logger)

	recomputeWorker := matcher.NewWorker(busImpl, svc, cfg.Matcher, logger)
	if err := recomputeWorker.Start(); err != nil {
		slog.Error("failed to start matcher worker", "error", err)
		os.Exit(1)
	}
	slog.Info("matcher worker started", "workers", cfg.Matcher.Workers)

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, svc, collector, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the worker first so in-flight recomputes finish before the
	// repository closes.
	if err := recomputeWorker.Stop(); err != nil {
		slog.Error("failed to stop matcher worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║       Loan Matching Engine                ║")
	fmt.Println("  ║   Every borrower, every program.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /borrowers/apply              - Submit a borrower application")
	fmt.Println("    GET  /borrowers/{id}               - Get borrower profile")
	fmt.Println("    GET  /borrowers/{id}/matches       - Get borrower match set")
	fmt.Println("    POST /lenders                      - Register a lender")
	fmt.Println("    PUT  /lenders/{id}/policy          - Publish a new policy version")
	fmt.Println("    GET  /lenders/{id}/policy          - Get active policy")
	fmt.Println("    GET  /lenders/{id}/policy/history  - List policy versions")
	fmt.Println("    GET  /lenders/{id}/matches         - Get lender match set")
	fmt.Println("    GET  /health                       - Health check")
	fmt.Println("    GET  /metrics                      - Prometheus metrics")
	fmt.Println()
}
