package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type streamHub interface {
	Serve(conn *websocket.Conn, tenantID, vehicleID string)
}

// StreamHandler upgrades dashboard connections to the realtime feed.
type StreamHandler struct {
	hub      streamHub
	upgrader websocket.Upgrader
}

func NewStreamHandler(hub streamHub, allowedOrigins []string) *StreamHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

func (h *StreamHandler) Register(r *gin.RouterGroup) {
	r.GET("/stream", h.Serve)
}

func (h *StreamHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "tenant", tenantID(c), "err", err)
		return
	}
	h.hub.Serve(conn, tenantID(c), c.Query("vehicleId"))
}
