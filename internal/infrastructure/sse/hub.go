// Package sse streams engine events to connected dashboard clients.
package sse

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Message is a single server-sent event.
type Message struct {
	Event string
	Data  json.RawMessage
}

// Client represents an active SSE connection.
type Client struct {
	ClientID    string
	MessageChan chan *Message
	closeOnce   sync.Once
}

// NewClient creates a client with a buffered message channel.
func NewClient(clientID string) *Client {
	return &Client{
		ClientID:    clientID,
		MessageChan: make(chan *Message, 100),
	}
}

// Close closes the client's message channel.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.MessageChan)
	})
}

// Hub manages SSE clients and fans engine events out to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.With().Str("service", "sse").Logger(),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ClientID] = client
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.Close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast marshals the payload and delivers it to every client.
// Slow clients with a full buffer miss the event.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("failed to marshal event payload")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.MessageChan <- &Message{Event: event, Data: data}:
		default:
			h.logger.Warn().Str("client_id", c.ClientID).Str("event", event).Msg("client buffer full, dropping event")
		}
	}
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.Close()
		delete(h.clients, id)
	}
}
