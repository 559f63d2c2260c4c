package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout   = 5 * time.Second
	clientBacklog  = 256
	readBufferSize = 1024
)

// Hub streams recorded events to WebSocket clients. A client may pass
// ?since=N to first receive the retained events numbered after N; the
// replay is written before any live event, in sequence order. A client
// that falls more than its backlog of live events behind is disconnected.
type Hub struct {
	history  *History
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	conn *websocket.Conn
	send chan message

	// after is the last replayed sequence number. Live events at or below
	// it were already written. Set before writeLoop starts.
	after uint64

	mu     sync.Mutex
	closed bool
}

// trySend queues data without blocking. It reports false when the
// backlog is full.
type message struct {
	seq  uint64
	data []byte
}

func (c *hubClient) trySend(msg message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// covered reports whether the replay already wrote event seq.
func (c *hubClient) covered(seq uint64) bool {
	return seq <= c.after
}

func (c *hubClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// NewHub creates a hub replaying from history.
func NewHub(history *History, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		history: history,
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: readBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // inspector is a local debugging surface
			},
		},
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	replay := r.URL.Query().Has("since")
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	// Registering before taking the replay snapshot leaves no gap: live
	// events recorded meanwhile wait in the backlog and writeLoop drops
	// the ones the replay already covered.
	c := &hubClient{conn: conn, send: make(chan message, clientBacklog)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if replay {
		after, err := h.replay(c, since)
		if err != nil {
			h.logger.Debug("websocket replay failed", "error", err)
			h.remove(c)
			conn.Close()
			return
		}
		c.after = after
	}

	go h.writeLoop(c)

	// Read until the client goes away; inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

// Broadcast sends ev to every client. It never blocks.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.enqueue(c, message{seq: ev.Seq, data: data})
	}
}

// replay writes the retained events after since straight to the
// connection and returns the last sequence number written.
func (h *Hub) replay(c *hubClient, since uint64) (uint64, error) {
	last := since
	for _, ev := range h.history.Since(since) {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return last, err
		}
		last = ev.Seq
	}
	return last, nil
}

func (h *Hub) enqueue(c *hubClient, msg message) {
	if !c.trySend(msg) {
		h.logger.Warn("inspector client too slow, disconnecting")
		h.remove(c)
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for msg := range c.send {
		if c.covered(msg.seq) {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
			h.logger.Debug("websocket write failed", "error", err)
			h.remove(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*hubClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}
