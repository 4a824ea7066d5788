package wshub

import (
	"context"
	"log"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"quickpoll/internal/events"
)

const sendBuffer = 64

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub tracks live connections and the room groups they belong to. A
// connection may be in any number of groups.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client from the hub and every group, then closes its
// Send channel. Room membership of the user behind it is left alone.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	for code, members := range h.groups {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.groups, code)
		}
	}
	delete(h.clients, clientID)
	close(c.Send)
}

// Join adds a registered client to a room's broadcast group.
func (h *Hub) Join(roomCode, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[clientID]; !ok {
		return
	}
	members, ok := h.groups[roomCode]
	if !ok {
		members = make(map[string]struct{})
		h.groups[roomCode] = members
	}
	members[clientID] = struct{}{}
}

// Members returns the number of connections in a room's group.
func (h *Hub) Members(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[roomCode])
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Forget drops a room's group.
func (h *Hub) Forget(roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups, roomCode)
}

// SendTo queues a frame for one client. Non-blocking: drops if channel full.
func (h *Hub) SendTo(clientID string, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// Broadcast queues a frame for every client in a room's group and returns
// how many accepted it. Non-blocking: drops if channel full.
func (h *Hub) Broadcast(roomCode string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id := range h.groups[roomCode] {
		c, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case c.Send <- frame:
			delivered++
		default:
			// Drop message if channel full
		}
	}
	return delivered
}

// Handle forwards room state changes to the room's group.
func (h *Hub) Handle(ev events.RoomEvent) {
	switch ev.Name {
	case events.StateUpdated, events.PollClosed:
		frame, err := events.Encode(ev.Name, ev.State)
		if err != nil {
			log.Printf("[WSHub] Encode error: %v\n", err)
			return
		}
		h.Broadcast(ev.RoomCode, frame)
	case events.RoomEvicted:
		h.Forget(ev.RoomCode)
	}
}
