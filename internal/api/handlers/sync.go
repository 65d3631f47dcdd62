package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/domain"
	"github.com/solegrid/syncapi/internal/service"
	apperrors "github.com/solegrid/syncapi/pkg/errors"
)

// HandleSyncProduct handles POST /v1/products/:sku/sync: fetches current
// market asks for the SKU and reconciles the storefront product
// (update-or-import).
func HandleSyncProduct(fetch *service.FetchService, syncer *service.SyncService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sku := c.Param("sku")
		snapshot, err := fetch.Fetch(c.Request.Context(), sku)
		if err != nil {
			respondFetchError(c, logger, sku, err)
			return
		}
		result := syncer.Reconcile(c.Request.Context(), snapshot)
		respondSyncResult(c, result)
	}
}

// HandleImportProduct handles POST /v1/products/:sku/import: fetches and
// runs the import flow only, skipping when the product already exists.
func HandleImportProduct(fetch *service.FetchService, syncer *service.SyncService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sku := c.Param("sku")
		snapshot, err := fetch.Fetch(c.Request.Context(), sku)
		if err != nil {
			respondFetchError(c, logger, sku, err)
			return
		}
		result := syncer.Import(c.Request.Context(), snapshot)
		respondSyncResult(c, result)
	}
}

// HandleBulkSync handles POST /v1/sync/bulk: runs one bulk sync pass over
// every sync-managed product and reports per-item results.
func HandleBulkSync(fetch *service.FetchService, syncer *service.SyncService, storefront *service.StorefrontService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := service.RunBulkSyncOnce(c.Request.Context(), fetch, syncer, storefront, logger)
		failed := 0
		for _, r := range results {
			if r.Status == domain.SyncError {
				failed++
			}
		}
		status := "success"
		if failed > 0 {
			status = "warning"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"synced":  len(results) - failed,
			"failed":  failed,
			"results": results,
		})
	}
}

func respondSyncResult(c *gin.Context, result domain.SyncResult) {
	code := http.StatusOK
	status := "success"
	if result.Status == domain.SyncError {
		code = http.StatusBadGateway
		status = "error"
	} else if result.Status == domain.SyncSkipped {
		status = "warning"
	}
	c.JSON(code, gin.H{
		"status": status,
		"result": result,
	})
}

func respondFetchError(c *gin.Context, logger *zap.Logger, sku string, err error) {
	var (
		unauthorized *apperrors.ErrUnauthorized
		notFound     *apperrors.ErrNotFound
		validation   *apperrors.ErrValidation
		upstream     *apperrors.ErrUpstream
	)
	switch {
	case errors.As(err, &unauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":    "error",
			"message":   unauthorized.Error(),
			"login_url": unauthorized.LoginURL,
		})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": notFound.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": validation.Error()})
	case errors.As(err, &upstream):
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": upstream.Error()})
	default:
		logger.Error("Fetch failed", zap.String("sku", sku), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
	}
}
