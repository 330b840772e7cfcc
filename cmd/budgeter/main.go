package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adiosmsu/budgeter/internal/adapters/database/pgsql"
	"github.com/adiosmsu/budgeter/internal/adapters/feeds"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portssvc "github.com/adiosmsu/budgeter/internal/core/ports/services"
	"github.com/adiosmsu/budgeter/internal/core/services"
	"github.com/adiosmsu/budgeter/internal/handlers"
	"github.com/adiosmsu/budgeter/internal/middleware"
	"github.com/adiosmsu/budgeter/internal/platform/config"
	"github.com/adiosmsu/budgeter/internal/platform/workers"
	"github.com/adiosmsu/budgeter/internal/repositories/memory"
	"github.com/adiosmsu/budgeter/pkg/database"
	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hubUnit, err := domain.NewUnit(cfg.HubUnit)
	if err != nil {
		logger.Error("Invalid hub unit", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cryptoUnit, err := domain.NewUnit(cfg.CryptoUnit)
	if err != nil {
		logger.Error("Invalid crypto unit", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memOpts := []memory.Option{memory.WithTimeout(cfg.IndexTimeout)}
	repos := memory.NewRepositoryProvider(nil, memOpts...)
	// Balances and the ledger move to PostgreSQL when a database is configured
	if cfg.DatabaseURL != "" {
		dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
		if err != nil {
			logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer database.ClosePgxPool(dbPool)

		if err := pgsql.EnsureSchema(ctx, dbPool); err != nil {
			logger.Error("Failed to prepare database schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
		repos = pgsql.NewRepositoryProvider(dbPool, repos.RateRepo, memory.NewPostponedRepository(memOpts...))
	}

	fetcher := feeds.NewFetcher(cfg.FeedTimeout, cfg.FeedRetryMax, logger)
	hub := feeds.NewCBRLoader(hubUnit, cfg.CBRURLs, fetcher, logger)
	crypto := feeds.NewCryptoLoader(cryptoUnit, cfg.CryptoTickerURLs, cfg.CryptoHistoryURL, fetcher, logger)

	pool := workers.NewPool(cfg.WorkerPoolSize, logger)
	defer pool.Close()

	serviceContainer := services.NewServiceContainer(repos, hub, pool,
		services.WithCryptoLoader(crypto),
		services.WithLogger(logger))

	sweepLimiter, err := middleware.NewLimiter(cfg.RateLimit)
	if err != nil {
		logger.Error("Failed to create rate limiter", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, serviceContainer, sweepLimiter)

	go runPeriodicSweeps(ctx, serviceContainer.Conversion, cfg.SweepInterval, logger)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("hub", hubUnit.String()), slog.String("crypto", cryptoUnit.String()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Server stopped, draining background tasks")
}

// runPeriodicSweeps reconciles postponed entries every interval until ctx ends.
// A zero interval disables it.
func runPeriodicSweeps(ctx context.Context, reconciler portssvc.ReconcilerSvc, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		logger.Info("Periodic reconciliation disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reconciler.ProcessAllPostponedEvents(ctx); err != nil {
				logger.Error("Periodic reconciliation failed", slog.String("error", err.Error()))
			}
		}
	}
}
