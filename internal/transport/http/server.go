package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/clubchat-server/internal/config"
	"github.com/vovakirdan/clubchat-server/internal/core"
)

// NewServer builds an HTTP server with the chat routes.
func NewServer(chat *core.Chat, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(chat, cfg, logger)))

	api := NewAPIHandlers(chat.Hub, logger)
	protected := router.Group("/api")
	protected.Use(AuthMiddleware(chat.Resolver, logger))
	protected.GET("/online", api.Online)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
