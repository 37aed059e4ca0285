package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
)

// Events pushed to the dashboards.
const (
	EventProgress      = "progress"
	EventBatchComplete = "batch_complete"
	EventCatalog       = "catalog"
	EventSnapshot      = "snapshot"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	queueSize  = 256
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn  *websocket.Conn
	queue chan Message
}

// Hub fans out events to the websocket connections of each owner.
type Hub struct {
	logger   core.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// Publish queues msg for every connection of owner. Slow connections drop messages instead of blocking the caller.
func (h *Hub) Publish(owner string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[owner] {
		select {
		case c.queue <- msg:
		default:
			h.logger.Warn("websocket queue full, message dropped", map[string]interface{}{"owner": owner, "event": msg.Event})
		}
	}
}

// Clients is the number of open connections of owner.
func (h *Hub) Clients(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[owner])
}

func (h *Hub) register(owner string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[owner] == nil {
		h.clients[owner] = make(map[*client]struct{})
	}
	h.clients[owner][c] = struct{}{}
}

func (h *Hub) unregister(owner string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients[owner], c)
	if len(h.clients[owner]) == 0 {
		delete(h.clients, owner)
	}
}

// Serve upgrades the request and streams owner's events until the peer goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, owner string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}
	c := &client{conn: conn, queue: make(chan Message, queueSize)}
	h.register(owner, c)
	defer h.unregister(owner, c)

	closed := make(chan struct{})
	go h.read(c, closed)
	h.write(c, closed)
	return nil
}

// read discards client messages; it only keeps the pong deadline up to date and notices the close.
func (h *Hub) read(c *client, closed chan struct{}) {
	defer close(closed)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", err)
			}
			return
		}
	}
}

func (h *Hub) write(c *client, closed chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
