package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/api/handlers"
	"github.com/solegrid/syncapi/internal/api/middleware"
	"github.com/solegrid/syncapi/internal/config"
	"github.com/solegrid/syncapi/internal/marketplace"
	"github.com/solegrid/syncapi/internal/service"
	"github.com/solegrid/syncapi/internal/session"
	"github.com/solegrid/syncapi/internal/token"
)

// Services bundles what the handlers need.
type Services struct {
	OAuth      *marketplace.OAuth
	Tokens     *token.Store
	Sessions   *session.Store
	Fetch      *service.FetchService
	Sync       *service.SyncService
	Storefront *service.StorefrontService
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svcs Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Marketplace Price Sync API",
			"endpoints": []string{
				"GET /health",
				"GET /auth/login",
				"GET /auth/callback",
				"POST /v1/products/:sku/sync",
				"POST /v1/products/:sku/import",
				"POST /v1/sync/bulk",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Marketplace OAuth flow
	router.GET("/auth/login", handlers.HandleLogin(svcs.OAuth, svcs.Sessions, logger))
	router.GET("/auth/callback", handlers.HandleCallback(svcs.Tokens, svcs.Sessions, logger))

	// API v1 routes (require the sync API key)
	v1 := router.Group("/v1")
	v1.Use(middleware.APIKeyMiddleware(cfg.API.KeyHash, logger))
	{
		v1.POST("/products/:sku/sync", handlers.HandleSyncProduct(svcs.Fetch, svcs.Sync, logger))
		v1.POST("/products/:sku/import", handlers.HandleImportProduct(svcs.Fetch, svcs.Sync, logger))
		v1.POST("/sync/bulk", handlers.HandleBulkSync(svcs.Fetch, svcs.Sync, svcs.Storefront, logger))
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
