// Package control exposes a running Controller over a WebSocket connection.
//
// Clients send JSON messages ({"type","id","payload"}) to start and cancel
// scripts or query status, and receive every session lifecycle event as it
// happens.
package control

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jward/automaple/internal/logging"
)

// Message types.
const (
	TypeStart    = "start"
	TypeCancel   = "cancel"
	TypeStatus   = "status"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeEvent    = "event"
	TypeResponse = "response"
	TypeError    = "error"

	// sendBufferSize is the per-client outbound message buffer size.
	sendBufferSize = 256
)

// Message is sent to and from clients.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	logger  *logging.Logger
	clients map[*client]struct{}
	mu      sync.RWMutex
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("control client connected", "clients", h.ClientCount())
}

// unregister removes c. Only the caller that removes it closes its send
// channel.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
	h.logger.Debug("control client disconnected", "clients", h.ClientCount())
}

// Broadcast sends an event of eventType to every client.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := encode(Message{Type: TypeEvent, EventType: eventType}, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.trySend(data)
	}
	if len(clients) > 0 {
		h.logger.Debug("event broadcast", "event", eventType, "recipients", len(clients))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// trySend queues data for the client, dropping it when the buffer is full or
// the client already disconnected.
func (c *client) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by unregister
	}()
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) reply(id, msgType string, payload any) {
	data, err := encode(Message{Type: msgType, ID: id}, payload)
	if err != nil {
		c.hub.logger.Error("failed to marshal reply", "type", msgType, "error", err)
		return
	}
	c.trySend(data)
}

func (c *client) replyError(id, message string) {
	c.reply(id, TypeError, map[string]string{"message": message})
}

func encode(msg Message, payload any) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}
	return json.Marshal(msg)
}
