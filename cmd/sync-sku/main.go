package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/config"
	"github.com/solegrid/syncapi/internal/marketplace"
	"github.com/solegrid/syncapi/internal/pricing"
	"github.com/solegrid/syncapi/internal/service"
	"github.com/solegrid/syncapi/internal/token"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/sync-sku/main.go <sku>")
		fmt.Println("Example: go run cmd/sync-sku/main.go \"FV5029-100\"")
		os.Exit(1)
	}
	sku := os.Args[1]

	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	oauth := marketplace.NewOAuth(cfg.Marketplace, logger)
	tokens := token.NewStore(token.NewFileStorage(cfg.Storage.TokenFilePath), oauth, logger)
	mc := marketplace.NewClient(cfg.Marketplace, tokens, logger)
	fetchSvc := service.NewFetchService(mc, tokens, "/auth/login", logger)
	storefront := service.NewStorefrontService(cfg.Storefront, logger)
	syncSvc := service.NewSyncService(storefront, pricing.NewEngine(cfg.Markup.EndingOffset), logger)

	ctx := context.Background()
	snapshot, err := fetchSvc.Fetch(ctx, sku)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		os.Exit(1)
	}

	result := syncSvc.Reconcile(ctx, snapshot)
	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Printf("✅ Sync finished\n\n%s\n", string(out))
}
