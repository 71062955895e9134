package telemetry

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rjboer/GoRadar/internal/logging"
)

const wsWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
}

// wsClient is one websocket listener of the live feed.
type wsClient struct {
	conn *websocket.Conn
	send chan Event
}

// writePump pumps events from the hub to the websocket connection.
func (c *wsClient) writePump() {
	defer c.conn.Close()
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	ch, cancel := h.Subscribe()
	defer cancel()

	client := &wsClient{conn: conn, send: make(chan Event, 64)}
	for _, ev := range h.History() {
		select {
		case client.send <- ev:
		default:
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			select {
			case client.send <- ev:
			default:
			}
		}
		close(client.send)
	}()
	go client.writePump()

	// read pump: the feed is one-way, reads only detect the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	cancel()
	<-done
}
