package http

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"trivia-rooms/internal/app"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub tracks live websocket clients and implements app.Broadcaster. Room
// membership is resolved through the connection registry, never stored on the
// connection itself.
type Hub struct {
	registry *app.ConnectionRegistry

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	pingMu     sync.Mutex
	pingSentAt time.Time
}

func NewHub(registry *app.ConnectionRegistry) *Hub {
	return &Hub{
		registry: registry,
		clients:  make(map[string]*client),
	}
}

func (h *Hub) add(connID string, conn *websocket.Conn) *client {
	c := &client{
		id:   connID,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[connID] = c
	h.mu.Unlock()
	go c.writePump()
	return c
}

func (h *Hub) remove(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
	}
	h.mu.Unlock()
	if ok {
		close(c.send)
	}
}

// ToConn sends one event to a single connection.
func (h *Hub) ToConn(connID, event string, payload any) {
	data, ok := encode(event, payload)
	if !ok {
		return
	}
	// Enqueue under the lock so remove cannot close the channel mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c := h.clients[connID]; c != nil {
		c.enqueue(data)
	}
}

// ToRoom fans an event out to every connection currently in the room.
func (h *Hub) ToRoom(roomID, event string, payload any) {
	data, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if id, ok := h.registry.RoomOf(c.id); ok && id == roomID {
			c.enqueue(data)
		}
	}
}

// ToLobby sends an event to every connection not in any room.
func (h *Hub) ToLobby(event string, payload any) {
	data, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if _, ok := h.registry.RoomOf(c.id); !ok {
			c.enqueue(data)
		}
	}
}

func encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(outboundMessage{Type: event, Payload: payload})
	if err != nil {
		log.Printf("marshal %s event: %v", event, err)
		return nil, false
	}
	return data, true
}

// enqueue never blocks the broadcasting goroutine; a client that cannot keep
// up loses messages rather than stalling the room.
func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("client %s send buffer full, dropping message", c.id)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.pingMu.Lock()
			c.pingSentAt = time.Now()
			c.pingMu.Unlock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// rtt returns the round trip measured from the last ping, zero before the
// first pong arrives.
func (c *client) rtt() time.Duration {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()
	if c.pingSentAt.IsZero() {
		return 0
	}
	return time.Since(c.pingSentAt)
}
