// Package main is the entry point for the Folio portfolio valuation service.
//
// The application is a modular monolith:
// - Domain types are pure (no infrastructure dependencies)
// - Dependencies are wired via the DI container
// - Module packages own their tables, services and HTTP handlers
// - Background jobs run on a cron scheduler
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/internal/server"
	"github.com/aristath/folio/pkg/logger"
)

// initialRefreshTimeout bounds the startup valuation pass; the scheduler owns
// every pass after it.
const initialRefreshTimeout = 2 * time.Minute

func main() {
	// Load configuration first to get the log level
	cfg, err := config.Load()
	if err != nil {
		// Use a fallback logger so the configuration error is still visible
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	log.Info().Msg("Starting Folio")

	// Wire all dependencies: databases, repositories, services, jobs
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Both databases must close on exit so WAL checkpoints are written
	defer container.PortfolioDB.Close()
	defer container.CacheDB.Close()

	// Load persisted holdings into the in-memory store. A missing file is a
	// first run; a corrupt file aborts startup rather than silently serving
	// an empty portfolio.
	persisted, err := container.PortfolioFile.Load()
	if err != nil {
		log.Fatal().Err(err).Str("path", container.PortfolioFile.Path()).Msg("Failed to load portfolio file")
	}
	if err := container.HoldingStore.ReplaceAll(persisted); err != nil {
		log.Fatal().Err(err).Msg("Failed to populate holding store")
	}
	log.Info().Int("holdings", container.HoldingStore.Count()).Msg("Portfolio loaded")

	// First valuation pass in the background so the API serves data soon
	// after boot. Best-effort: on failure the scheduler retries on its
	// regular cadence.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), initialRefreshTimeout)
		defer cancel()
		if _, err := container.PortfolioService.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial portfolio refresh failed")
		}
	}()

	// Start background jobs (refresh, backups, cache cleanup)
	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	// Start server in a goroutine so main can wait on signals
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Block until SIGINT (Ctrl+C) or SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Give in-flight requests up to 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the scheduler after the server so no request races a dying job;
	// Stop drains jobs that are mid-run.
	container.Scheduler.Stop()

	log.Info().Msg("Server stopped")
}
