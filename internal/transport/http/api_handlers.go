package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/clubchat-server/internal/core"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub: hub,
		log: logger,
	}
}

// OnlineResponse lists the online user ids in ascending order.
type OnlineResponse struct {
	Users []int64 `json:"users"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Online returns the current roster.
// GET /api/online
func (h *APIHandlers) Online(c *gin.Context) {
	users, err := h.hub.Online(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read roster")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "chat unavailable"})
		return
	}

	c.JSON(http.StatusOK, OnlineResponse{Users: users})
}
