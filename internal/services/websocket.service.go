package services

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"` // "status", "ping", "pong", "error"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ClientConnection represents a connected WebSocket subscriber
type ClientConnection struct {
	ID   string
	Conn *websocket.Conn
	Send chan WebSocketMessage

	mu     sync.Mutex
	closed bool
}

// NewClientConnection wraps conn with a buffered send queue
func NewClientConnection(id string, conn *websocket.Conn) *ClientConnection {
	return &ClientConnection{
		ID:   id,
		Conn: conn,
		Send: make(chan WebSocketMessage, 256),
	}
}

// Queue enqueues msg without blocking. It returns false when the client is
// closed or its queue is full.
func (c *ClientConnection) Queue(msg WebSocketMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *ClientConnection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// WebSocketHub fans status reports out to every connected subscriber
type WebSocketHub struct {
	clients    map[string]*ClientConnection
	broadcast  chan WebSocketMessage
	register   chan *ClientConnection
	unregister chan *ClientConnection
	mu         sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
}

var wsHub *WebSocketHub

// NewWebSocketHub creates a hub and starts its event loop
func NewWebSocketHub() *WebSocketHub {
	h := &WebSocketHub{
		clients:    make(map[string]*ClientConnection),
		broadcast:  make(chan WebSocketMessage, 256),
		register:   make(chan *ClientConnection),
		unregister: make(chan *ClientConnection),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// InitWebSocketHub initializes the process-wide hub
func InitWebSocketHub() *WebSocketHub {
	wsHub = NewWebSocketHub()
	return wsHub
}

// run manages the hub's event loop
func (h *WebSocketHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if existing, ok := h.clients[client.ID]; ok {
				existing.close()
			}
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s (total: %d)", client.ID, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if current, exists := h.clients[client.ID]; exists && current == client {
				delete(h.clients, client.ID)
			}
			client.close()
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client disconnected: %s (total: %d)", client.ID, total)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				// A full queue skips this message for that client
				client.Queue(msg)
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client to the hub
func (h *WebSocketHub) Register(client *ClientConnection) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client from the hub. A newer connection registered
// under the same ID is left in place.
func (h *WebSocketHub) Unregister(client *ClientConnection) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a message for every client. It never blocks; a full queue drops the message.
func (h *WebSocketHub) Broadcast(msg WebSocketMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		log.Printf("[WS] Broadcast queue full, dropping %s message", msg.Type)
	}
}

// Subscribers returns the number of connected clients
func (h *WebSocketHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify pushes a rendered status report to all subscribers
func (h *WebSocketHub) Notify(text string) {
	h.Broadcast(WebSocketMessage{
		Type:      "status",
		Timestamp: time.Now(),
		Data:      map[string]string{"text": text},
	})
}

// Stop shuts the hub down and closes every client's send channel
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// StopWebSocketHub gracefully stops the process-wide hub
func StopWebSocketHub() {
	if wsHub != nil {
		wsHub.Stop()
	}
}
