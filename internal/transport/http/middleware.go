package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/clubchat-server/internal/core"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyProfileName is the context key for storing the profile name.
	ContextKeyProfileName = "profile_name"
)

// AuthMiddleware resolves the caller from a bearer credential or the
// session cookie with the same resolver the chat uses.
func AuthMiddleware(resolver core.IdentityResolver, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := requestCredential(c)
		if !ok {
			logger.Debug().Msg("missing credential")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing credential"})
			return
		}

		id, err := resolver.Resolve(c.Request.Context(), credential)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid credential")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credential"})
			return
		}

		// Store user info in context
		c.Set(ContextKeyUserID, id.UserID)
		c.Set(ContextKeyProfileName, id.DisplayName)

		c.Next()
	}
}

func requestCredential(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
