package hub

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one connected remote display. Only the hub loop adds, removes or
// closes clients.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	quit <-chan struct{}

	closeConn sync.Once
}

func (c *Client) close() {
	c.closeConn.Do(func() {
		c.conn.Close()
	})
}

// serveWs upgrades the request and hands the client to the loop.
func (h *Hub) serveWs(w http.ResponseWriter, r *http.Request) {
	quit, ok := h.accepting()
	if !ok {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[hub] upgrade failed: %v", err)
		return
	}
	c := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		quit: quit,
	}
	select {
	case h.register <- c:
	case <-quit:
		c.close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump forwards button presses to the dispatch queue. Anything else is
// logged and ignored.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.quit:
		}
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !errors.Is(err, websocket.ErrCloseSent) {
				log.Printf("[hub] client %s read error: %v", c.id, err)
			}
			return
		}
		id, err := ParseTrigger(message)
		if err != nil {
			log.Printf("[hub] client %s sent unrecognized message: %v", c.id, err)
			continue
		}
		log.Printf("[hub] client %s pressed %q", c.id, id)
		c.hub.queue.Enqueue(id)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[hub] client %s write error: %v", c.id, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
