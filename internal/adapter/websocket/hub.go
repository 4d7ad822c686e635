// Package websocket pushes merged series to browser clients as they are
// delivered.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/output"
	"github.com/couchcryptid/sounding-graphs/internal/pipeline"
)

const (
	writeTimeout       = 10 * time.Second
	defaultReadTimeout = 60 * time.Second
)

// Envelope wraps each document sent to clients.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Payload   output.Document `json:"payload"`
}

type client struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (c *client) write(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub is an http.Handler accepting WebSocket clients and a pipeline.Sink
// broadcasting every delivery to them. New clients first receive the latest
// document of every series seen so far.
type Hub struct {
	upgrader    websocket.Upgrader
	logger      *slog.Logger
	readTimeout time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  map[string][]byte
}

// Option configures a Hub.
type Option func(*Hub)

// WithReadTimeout sets how long a client may stay silent before it is
// dropped. Clients are pinged at nine tenths of this interval, so any client
// that answers pings stays connected while idle.
func WithReadTimeout(d time.Duration) Option {
	return func(h *Hub) { h.readTimeout = d }
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:      logger,
		readTimeout: defaultReadTimeout,
		clients:     make(map[*client]struct{}),
		latest:      make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{conn: conn, done: make(chan struct{})}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	replay := h.snapshot()
	// Hold the client's write lock until the replay is sent so a concurrent
	// broadcast cannot overtake it.
	c.writeMu.Lock()
	h.mu.Unlock()

	for _, data := range replay {
		if err := c.write(data); err != nil {
			c.writeMu.Unlock()
			h.remove(c)
			return
		}
	}
	c.writeMu.Unlock()
	h.logger.Debug("websocket client connected", "remote", r.RemoteAddr, "replayed", len(replay))

	go h.pingLoop(c)
	h.readLoop(c)
}

// pingLoop pings c until it is removed. A client that answers keeps its read
// deadline moving forward through the pong handler.
func (h *Hub) pingLoop(c *client) {
	ticker := time.NewTicker(h.readTimeout * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				h.logger.Debug("websocket ping failed", "error", err)
				h.remove(c)
				return
			}
		}
	}
}

// readLoop discards client frames until the connection fails.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// snapshot returns the latest documents ordered by series key. Callers hold h.mu.
func (h *Hub) snapshot() [][]byte {
	keys := make([]string, 0, len(h.latest))
	for k := range h.latest {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, h.latest[k])
	}
	return out
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) Deliver(_ context.Context, r pipeline.Result) error {
	doc := output.NewDocument(r)
	data, err := json.Marshal(Envelope{
		Type:      "series",
		ID:        uuid.NewString(),
		Timestamp: domain.Clock().Now().UnixMilli(),
		Payload:   doc,
	})
	if err != nil {
		return fmt.Errorf("serialize merged series: %w", err)
	}

	h.mu.Lock()
	h.latest[doc.Key()] = data
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.writeMu.Lock()
			err := c.write(data)
			c.writeMu.Unlock()
			if err != nil {
				h.logger.Debug("dropping websocket client", "error", err)
				h.remove(c)
			}
		}()
	}
	wg.Wait()
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.close()
	}
	return nil
}
