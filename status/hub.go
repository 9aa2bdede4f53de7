// Package status implements the ambient reporting surface: a process-wide
// status snapshot, broadcast to monitoring clients over a WebSocket hub,
// exposed as Prometheus gauges, and persisted to a local history store for
// discontinuity/ARQ-depth events.
package status

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/openbroadcast/obe/logging"
)

// Snapshot is the user-visible status object: input_active,
// detected_video_format, and per-output ARQ depth.
type Snapshot struct {
	InputActive        bool           `json:"input_active"`
	DetectedVideoFormat string        `json:"detected_video_format"`
	ARQDepth            map[int]int   `json:"arq_depth"` // by output ID
}

// client is one connected monitor subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts status snapshots to every connected monitor client,
// adapted from the register/unregister/broadcast channel shape used for
// SFU peer fan-out: here the payload is always the latest Snapshot rather
// than a per-room message.
type Hub struct {
	mu      sync.Mutex
	current Snapshot
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	log logging.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewHub returns a Hub; call Run in its own goroutine before serving.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte),
		log:        logging.For("status.hub"),
	}
}

// Run is the hub's single event loop; owns h.clients exclusively.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Publish updates the current snapshot and broadcasts it to every
// connected monitor client.
func (h *Hub) Publish(snap Snapshot) {
	h.mu.Lock()
	h.current = snap
	h.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		h.log.Error("snapshot marshal failed", "err", err)
		return
	}
	h.broadcast <- data
}

// Current returns the most recently published snapshot.
func (h *Hub) Current() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// ServeHTTP upgrades to a WebSocket, registers the client, and pushes the
// current snapshot immediately plus every subsequent broadcast.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 8)}
	h.register <- c

	if data, err := json.Marshal(h.Current()); err == nil {
		c.send <- data
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
