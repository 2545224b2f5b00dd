package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second
	// sendQueue is how many snapshots a client may lag behind before it is dropped.
	sendQueue = 4
)

var errClientGone = errors.New("websocket client is gone")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is one websocket connection. Only its writePump writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub owns every websocket connection. It never writes to a connection
// itself, so a client that stops reading cannot stall a broadcast.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *logrus.Logger
}

func newHub(logger *logrus.Logger) *hub {
	return &hub{clients: make(map[*client]struct{}), logger: logger}
}

// register adds conn and starts its read and write loops.
func (h *hub) register(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, sendQueue)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return c
}

// drop must be called with h.mu held. Closing the queue stops writePump,
// which closes the connection.
func (h *hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	h.drop(c)
	h.mu.Unlock()
}

// enqueue must be called with h.mu held.
func (h *hub) enqueue(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Debugf("dropping websocket client %s: too far behind", c.conn.RemoteAddr())
		h.drop(c)
	}
}

func (h *hub) send(c *client, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return errClientGone
	}
	h.enqueue(c, data)
	return nil
}

func (h *hub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warnf("unable to encode broadcast: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.enqueue(c, data)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debugf("dropping websocket client %s: %v", c.conn.RemoteAddr(), err)
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
