package gateway

import (
	"encoding/json"
	"time"

	"campus-chat/internal/models"
	"campus-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Conn is one live socket session. The authenticated fields are unset until
// the authenticate event succeeds; they are only ever touched on the gateway
// event loop.
type Conn struct {
	id   uuid.UUID
	ws   *websocket.Conn
	send chan []byte

	userID        int
	username      string
	authenticated bool
	closed        bool
}

func newConn(ws *websocket.Conn, buffer int) *Conn {
	return &Conn{
		id:   uuid.New(),
		ws:   ws,
		send: make(chan []byte, buffer),
	}
}

func (c *Conn) ID() uuid.UUID { return c.id }

// close shuts the send channel so the write pump drains and exits. Must only
// be called from the gateway loop; the closed flag keeps it idempotent.
func (c *Conn) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Conn) readPump(g *Gateway) {
	defer func() {
		g.Disconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error: %v", err)
			}
			return
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Debug("Dropping malformed client event: %v", err)
			continue
		}

		g.HandleEvent(c, ev)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
