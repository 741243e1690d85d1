package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"vehicle-service-server/logger"
	"vehicle-service-server/models"
)

// Client represents a connected WebSocket client
type Client struct {
	Hub  *Hub
	ID   uint
	Role string
	Conn connection
	Send chan []byte
}

// Hub tracks open connections per account and delivers lifecycle events to
// the accounts named as recipients. One account may hold several
// connections.
type Hub struct {
	clients map[uint]map[*Client]struct{}

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Message handlers keyed by incoming message type
	MessageHandlers map[string]MessageHandler

	// closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// Message is the frame pushed to clients.
type Message struct {
	Type      string               `json:"type"`
	BookingID uint                 `json:"booking_id,omitempty"`
	Status    models.BookingStatus `json:"status,omitempty"`
	Title     string               `json:"title,omitempty"`
	Body      string               `json:"body,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// MessageHandler handles different types of messages
type MessageHandler func(*Client, *Message) error

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	hub := &Hub{
		clients:         make(map[uint]map[*Client]struct{}),
		Register:        make(chan *Client),
		Unregister:      make(chan *Client),
		MessageHandlers: make(map[string]MessageHandler),
		done:            make(chan struct{}),
	}
	hub.MessageHandlers["ping"] = hub.handlePing
	return hub
}

// Run starts the hub's main loop and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			if h.clients[client.ID] == nil {
				h.clients[client.ID] = make(map[*Client]struct{})
			}
			h.clients[client.ID][client] = struct{}{}
			h.mu.Unlock()
			logger.Debug("🔌 Client registered", zap.Uint("user_id", client.ID), zap.String("role", client.Role))

		case client := <-h.Unregister:
			h.remove(client)
			logger.Debug("🔌 Client unregistered", zap.Uint("user_id", client.ID))
		}
	}
}

func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[client.ID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.Send)
	if len(conns) == 0 {
		delete(h.clients, client.ID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conns := range h.clients {
		for c := range conns {
			close(c.Send)
		}
		delete(h.clients, id)
	}
}

// Publish delivers a lifecycle event to every connection of its
// recipients. Offline recipients still have the stored notification.
func (h *Hub) Publish(_ context.Context, event models.LifecycleEvent) error {
	data, err := json.Marshal(&Message{
		Type:      event.Type,
		BookingID: event.BookingID,
		Status:    event.Status,
		Title:     event.Title,
		Body:      event.Body,
		Timestamp: event.OccurredAt,
	})
	if err != nil {
		return err
	}
	for _, userID := range event.Recipients {
		h.SendToUser(userID, data)
	}
	return nil
}

// SendToUser sends a payload to every connection of a user
func (h *Hub) SendToUser(userID uint, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.Send <- data:
		default:
			logger.Warn("⚠️ Send buffer full, dropping message", zap.Uint("user_id", userID))
		}
	}
}

// ConnectionCount returns how many connections a user holds.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// IsUserConnected checks if a user is currently connected
func (h *Hub) IsUserConnected(userID uint) bool {
	return h.ConnectionCount(userID) > 0
}

// handlePing handles ping messages for connection health
func (h *Hub) handlePing(client *Client, _ *Message) error {
	return client.SendMessage(&Message{Type: "pong", Timestamp: time.Now()})
}
