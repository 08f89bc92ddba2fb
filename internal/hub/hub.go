package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"chatroom/backend/internal/logger"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Directory resolves a room to the connections joined to it.
type Directory interface {
	Recipients(room string) []string
}

// Hub delivers events to registered clients. Publishes are serialized so
// every recipient of a room observes the same event order.
type Hub struct {
	dir     Directory
	mu      sync.Mutex
	clients map[string]*Client
	onEvict func(id string)
}

// Option configures a Hub.
type Option func(*Hub)

// WithEvictionHook registers fn to run whenever a slow client is evicted.
func WithEvictionHook(fn func(id string)) Option {
	return func(h *Hub) { h.onEvict = fn }
}

// NewHub creates a Hub that looks room membership up in dir.
func NewHub(dir Directory, opts ...Option) *Hub {
	h := &Hub{
		dir:     dir,
		clients: make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register makes c reachable by Send and Publish.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes the client and closes it.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if ok {
		c.Close()
	}
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Send delivers event to a single client.
func (h *Hub) Send(id string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[id]; ok {
		h.deliver(c, data)
	}
	return nil
}

// Publish delivers event to every connection in room except exclude.
// It never blocks on a recipient.
func (h *Hub) Publish(room string, event Event, exclude string) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range h.dir.Recipients(room) {
		if id == exclude {
			continue
		}
		if c, ok := h.clients[id]; ok {
			h.deliver(c, data)
		}
	}
	return nil
}

// Shutdown closes every registered client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// deliver enqueues data for c, evicting c when its queue is full.
// Caller holds h.mu.
func (h *Hub) deliver(c *Client, data []byte) {
	if c.closed() {
		delete(h.clients, c.ID)
		return
	}
	if c.enqueue(data) {
		return
	}

	delete(h.clients, c.ID)
	c.Close()
	logger.L().Warn().Str(logger.FieldConnID, c.ID).Msg("outbound queue full, evicting client")
	if h.onEvict != nil {
		h.onEvict(c.ID)
	}
}
