package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/api"
	"github.com/solegrid/syncapi/internal/config"
	"github.com/solegrid/syncapi/internal/marketplace"
	"github.com/solegrid/syncapi/internal/pricing"
	"github.com/solegrid/syncapi/internal/service"
	"github.com/solegrid/syncapi/internal/session"
	"github.com/solegrid/syncapi/internal/token"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting price sync API server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	// Wire marketplace auth + token store
	oauth := marketplace.NewOAuth(cfg.Marketplace, logger)
	tokens := token.NewStore(token.NewFileStorage(cfg.Storage.TokenFilePath), oauth, logger)
	sessions := session.NewStore(cfg.Storage.SessionDir, logger)

	// Wire fetch + reconciliation services
	mc := marketplace.NewClient(cfg.Marketplace, tokens, logger)
	fetchSvc := service.NewFetchService(mc, tokens, "/auth/login", logger)
	storefront := service.NewStorefrontService(cfg.Storefront, logger)
	syncSvc := service.NewSyncService(storefront, pricing.NewEngine(cfg.Markup.EndingOffset), logger)

	// Initialize router
	router := api.NewRouter(cfg, api.Services{
		OAuth:      oauth,
		Tokens:     tokens,
		Sessions:   sessions,
		Fetch:      fetchSvc,
		Sync:       syncSvc,
		Storefront: storefront,
	}, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Optional bulk sync loop: runs on startup and every SYNC_INTERVAL_MINUTES
	if cfg.SyncIntervalMinutes > 0 {
		syncCtx := context.Background()
		interval := time.Duration(cfg.SyncIntervalMinutes) * time.Minute
		go service.RunBulkSyncLoop(syncCtx, interval, fetchSvc, syncSvc, storefront, logger)
		logger.Info("Bulk sync job started", zap.Duration("interval", interval))
	}

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
