package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/service"
	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/response"
)

// HTTPHandler exposes the presence reporting surface consumed by the
// CRUD layer's "live stats" screen.
type HTTPHandler struct {
	service service.LiveService
}

func NewHTTPHandler(svc service.LiveService) *HTTPHandler {
	return &HTTPHandler{service: svc}
}

// RegisterRoutes registers the HTTP API routes.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine, ws *WSHandler) {
	r.GET("/live/ws", ws.HandleWebSocket)

	api := r.Group("/api/v1")
	{
		live := api.Group("/live")
		{
			live.GET("/stats", h.GetRoomStats)
			live.GET("/stats/:token", h.GetRoomStatsByToken)
		}
	}
}

// GetRoomStats handles GET /api/v1/live/stats.
func (h *HTTPHandler) GetRoomStats(c *gin.Context) {
	response.Success(c, h.service.RoomStats())
}

// GetRoomStatsByToken handles GET /api/v1/live/stats/:token.
func (h *HTTPHandler) GetRoomStatsByToken(c *gin.Context) {
	token := c.Param("token")
	stats, ok := h.service.RoomStats()[token]
	if !ok {
		response.NotFound(c, "no live room for this share")
		return
	}
	response.Success(c, stats)
}
