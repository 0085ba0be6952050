package handlers

import (
	"net/http"

	"campus-chat/internal/gateway"
	"campus-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	gateway  *gateway.Gateway
	upgrader websocket.Upgrader
}

func NewWebSocketHandlers(gw *gateway.Gateway) *WebSocketHandlers {
	return &WebSocketHandlers{
		gateway: gw,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket upgrades the connection and hands it to the gateway. The
// socket starts unauthenticated; the client's first protocol event must be
// authenticate, and the gateway closes the socket if resolution fails.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	h.gateway.ServeConn(conn)
}
