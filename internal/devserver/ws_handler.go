package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ticketsync/internal/middleware"
	"ticketsync/internal/pkg/response"
	"ticketsync/internal/websocket"
)

type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gws.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts browser origins matching allowedOrigin; an
// empty value accepts any. Non-browser clients send no Origin.
func NewWebSocketHandler(hub *websocket.Hub, allowedOrigin string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
		logger: logger,
	}
}

// HandleConnection upgrades the request and hands the connection to the hub.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	auth, err := h.hub.AuthenticateClient(middleware.ExtractToken(c))
	if err != nil {
		h.logger.Warn("websocket authentication failed", zap.Error(err), zap.String("ip", c.ClientIP()))
		response.Unauthorized(c, "TOKEN_EXPIRED", "authentication failed")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err), zap.String("ip", c.ClientIP()))
		return
	}

	client := websocket.NewClient(h.hub, conn, auth)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
