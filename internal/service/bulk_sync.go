package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/solegrid/syncapi/internal/domain"
)

// interItemInterval spaces per-SKU fetches so a bulk run stays under the
// marketplace rate limits.
const interItemInterval = 2 * time.Second

var bulkSyncMu sync.Mutex

// RunBulkSyncOnce syncs every product carrying the sync marker tag. Items
// are processed sequentially with a fixed inter-item delay; one SKU's
// failure is recorded and does not abort the run.
func RunBulkSyncOnce(ctx context.Context, fetch *FetchService, syncer *SyncService, storefront *StorefrontService, logger *zap.Logger) []domain.SyncResult {
	products, err := storefront.ListSyncedProducts(ctx)
	if err != nil {
		logger.Error("Bulk sync: failed to list synced products", zap.Error(err))
		return nil
	}
	if len(products) == 0 {
		logger.Debug("Bulk sync: no synced products found")
		return nil
	}

	limiter := rate.NewLimiter(rate.Every(interItemInterval), 1)
	results := make([]domain.SyncResult, 0, len(products))
	for _, p := range products {
		if err := limiter.Wait(ctx); err != nil {
			logger.Warn("Bulk sync aborted", zap.Error(err))
			break
		}
		if p.SKU == "" {
			logger.Warn("Bulk sync: product has no SKU tag, skipping",
				zap.String("product_id", p.ID), zap.String("title", p.Title))
			results = append(results, domain.SyncResult{
				Status:  domain.SyncSkipped,
				Title:   p.Title,
				Message: "no SKU tag",
			})
			continue
		}
		snapshot, err := fetch.Fetch(ctx, p.SKU)
		if err != nil {
			logger.Warn("Bulk sync: fetch failed for SKU", zap.String("sku", p.SKU), zap.Error(err))
			results = append(results, domain.SyncResult{
				Status:  domain.SyncError,
				SKU:     p.SKU,
				Title:   p.Title,
				Message: err.Error(),
			})
			continue
		}
		results = append(results, syncer.Sync(ctx, p.ID, snapshot))
	}

	logger.Info("Bulk sync complete", zap.Int("products", len(products)), zap.Int("results", len(results)))
	return results
}

// RunBulkSyncLoop runs bulk sync once, then every interval. Call from a
// goroutine.
func RunBulkSyncLoop(ctx context.Context, interval time.Duration, fetch *FetchService, syncer *SyncService, storefront *StorefrontService, logger *zap.Logger) {
	bulkSyncMu.Lock()
	RunBulkSyncOnce(ctx, fetch, syncer, storefront, logger)
	bulkSyncMu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bulkSyncMu.Lock()
			RunBulkSyncOnce(ctx, fetch, syncer, storefront, logger)
			bulkSyncMu.Unlock()
		}
	}
}
