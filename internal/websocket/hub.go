// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package websocket

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types.
const (
	MessageTypeAnomaly = "anomaly"
	MessageTypeStats   = "stats"
	MessageTypePing    = "ping"
	MessageTypePong    = "pong"
)

// Message is the envelope for everything sent over the socket.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Config configures the hub.
type Config struct {
	// AllowedOrigins lists browser origins allowed to connect. "*" allows
	// any origin, including requests without an Origin header.
	AllowedOrigins []string

	// BroadcastBuffer bounds queued broadcasts. Default: 256
	BroadcastBuffer int
}

// Hub tracks connected clients and broadcasts messages to them.
type Hub struct {
	clients      map[*Client]struct{}
	broadcast    chan Message
	register     chan *Client
	unregisterCh chan *Client

	done     chan struct{}
	stopOnce sync.Once

	upgrader websocket.Upgrader
	origins  map[string]struct{}
	anyOrig  bool

	mu sync.RWMutex
}

// NewHub creates a hub. Call Run to start it.
func NewHub(cfg Config) *Hub {
	if cfg.BroadcastBuffer <= 0 {
		cfg.BroadcastBuffer = 256
	}
	h := &Hub{
		clients:      make(map[*Client]struct{}),
		broadcast:    make(chan Message, cfg.BroadcastBuffer),
		register:     make(chan *Client),
		unregisterCh: make(chan *Client),
		done:         make(chan struct{}),
		origins:      make(map[string]struct{}, len(cfg.AllowedOrigins)),
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			h.anyOrig = true
		}
		h.origins[o] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// Name identifies the hub as a bus consumer and supervised service.
func (h *Hub) Name() string { return "websocket-hub" }

// Run processes registrations and broadcasts until ctx is canceled, then
// closes every client.
//
// Lifecycle events are drained before broadcasts so a client registered
// before a broadcast always receives it.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.register:
			h.add(c)
			continue
		case c := <-h.unregisterCh:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregisterCh:
			h.remove(c)
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnectionsActive.Inc()
	logging.Info().Uint64("client_id", c.id).Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.WSConnectionsActive.Dec()
		logging.Info().Uint64("client_id", c.id).Int("total_clients", n).Msg("websocket client disconnected")
	}
}

// Register hands c to the running hub. It returns false once the hub has
// shut down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.unregisterCh <- c:
	case <-h.done:
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	n := h.ClientCount()
	h.stopOnce.Do(func() { close(h.done) })
	h.closeAllClients()

	reason := ShutdownReasonContextCanceled
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", h.Name()).
		Str("reason", string(reason)).
		Int("clients_closed", n).
		Msg("websocket hub stopped")
}

// sortedClients must be called with mu held.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// broadcastToClients delivers msg in connection order. Clients with a full
// send buffer are disconnected.
func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.sortedClients() {
		select {
		case c.send <- msg:
		default:
			close(c.send)
			delete(h.clients, c)
			metrics.WSConnectionsActive.Dec()
			logging.Warn().Uint64("client_id", c.id).Msg("dropping slow websocket client")
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sortedClients() {
		close(c.send)
		delete(h.clients, c)
		metrics.WSConnectionsActive.Dec()
	}
}

func (h *Hub) enqueue(msg Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		logging.Warn().Str("message_type", msg.Type).Msg("broadcast channel full, dropping message")
		return false
	}
}

// Consume implements eventbus.Consumer. A full broadcast queue drops the
// message instead of blocking the bus.
func (h *Hub) Consume(_ context.Context, a *models.Anomaly) error {
	h.enqueue(Message{Type: MessageTypeAnomaly, Data: a})
	return nil
}

// BroadcastStats sends a counter snapshot to every client.
func (h *Hub) BroadcastStats(data any) {
	h.enqueue(Message{Type: MessageTypeStats, Data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.anyOrig {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("websocket connection rejected: missing Origin header")
		return false
	}
	if _, ok := h.origins[origin]; ok {
		return true
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "websocket hub stopped", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := NewClient(h, conn)
	if !h.Register(c) {
		_ = conn.Close()
		return
	}
	c.Start()
}
