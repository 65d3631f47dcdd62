package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/marketplace"
	"github.com/solegrid/syncapi/internal/session"
	"github.com/solegrid/syncapi/internal/token"
)

// HandleLogin handles GET /auth/login: creates a login session and
// redirects to the marketplace authorization page with the session id as
// the OAuth state.
func HandleLogin(oauth *marketplace.OAuth, sessions *session.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := sessions.Create(map[string]string{
			"remote_addr": c.ClientIP(),
		})
		if err != nil {
			logger.Error("Failed to create login session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start login"})
			return
		}
		c.Redirect(http.StatusFound, oauth.AuthorizeURL(rec.ID))
	}
}

// HandleCallback handles GET /auth/callback: validates the state against
// the session store and forwards the authorization code to the token
// store.
func HandleCallback(tokens *token.Store, sessions *session.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Query("code")
		state := c.Query("state")
		if code == "" {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "missing code parameter"})
			return
		}

		rec, err := sessions.Get(state)
		if err != nil {
			logger.Warn("Session lookup failed during callback", zap.Error(err))
		}
		if rec == nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unknown or expired login session"})
			return
		}

		if err := tokens.ExchangeCode(c.Request.Context(), code); err != nil {
			logger.Error("Authorization code exchange failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": err.Error()})
			return
		}

		if err := sessions.Delete(rec.ID); err != nil {
			logger.Warn("Failed to delete login session", zap.String("session_id", rec.ID), zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "marketplace authorization complete"})
	}
}
