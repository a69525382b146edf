package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/config"
	"github.com/radiusdt/recovery-analytics/internal/database"
	"github.com/radiusdt/recovery-analytics/internal/httpserver"
	"github.com/radiusdt/recovery-analytics/internal/metrics"
	"github.com/radiusdt/recovery-analytics/internal/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting recovery analytics",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("timezone", cfg.Analytics.Timezone),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
	}

	// PostgreSQL holds every report input.
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := database.NewPostgresDB(connectCtx, cfg.Database, logger)
	cancel()
	if err != nil {
		if cfg.IsProduction() {
			logger.Fatal("PostgreSQL not available", zap.Error(err))
		}
		logger.Warn("PostgreSQL not available, using in-memory storage", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
		if m != nil {
			go db.ReportStats(ctx, 15*time.Second, m)
		}
	}

	// Redis only backs the per-tenant quota.
	var rdb *database.RedisDB
	if cfg.Redis.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err = database.NewRedisDB(connectCtx, cfg.Redis, logger)
		cancel()
		if err != nil {
			logger.Warn("Redis not available, tenant quota disabled", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	rateLimiter := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	rateLimiter.SetMetrics(m)
	go cleanupLimiters(ctx, rateLimiter)

	handler, err := httpserver.NewServer(&httpserver.Dependencies{
		DB:          db,
		Redis:       rdb,
		Config:      cfg,
		Logger:      logger,
		Metrics:     m,
		RateLimiter: rateLimiter,
	})
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimitMiddleware) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupIPLimiters()
		}
	}
}
