package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	Data any    `json:"data,omitempty"`
}

// WSConn wraps a WebSocket connection with its identity and room
// memberships. rooms is guarded by the hub lock.
type WSConn struct {
	conn     *websocket.Conn
	userID   string
	userName string
	send     chan []byte
	rooms    map[string]bool
}

// Hub maps connections to rooms and multicasts events. It implements
// service.Broadcaster.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	rooms       map[string]map[*WSConn]bool // room code -> connection set
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		rooms:       make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its rooms, and
// returns the room codes it was in so the caller can report disconnects.
func (h *Hub) Unregister(c *WSConn) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return nil
	}
	delete(h.connections, c)
	var codes []string
	for code := range c.rooms {
		codes = append(codes, code)
		h.dropLocked(c, code)
	}
	close(c.send)
	return codes
}

// JoinRoom adds a connection to a room channel.
func (h *Hub) JoinRoom(c *WSConn, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[code] == nil {
		h.rooms[code] = make(map[*WSConn]bool)
	}
	h.rooms[code][c] = true
	c.rooms[code] = true
}

// LeaveRoom removes a connection from a room channel.
func (h *Hub) LeaveRoom(c *WSConn, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c, code)
}

func (h *Hub) dropLocked(c *WSConn, code string) {
	delete(c.rooms, code)
	if conns, ok := h.rooms[code]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, code)
		}
	}
}

// EmitToRoom multicasts an event to every connection in the room.
func (h *Hub) EmitToRoom(code string, event string, data any) {
	payload, err := json.Marshal(WSEvent{Type: event, Room: code, Data: data})
	if err != nil {
		log.Error().Err(err).Str("roomCode", code).Str("event", event).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[code] {
		select {
		case c.send <- payload:
		default:
			log.Warn().Str("userId", c.userID).Str("roomCode", code).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// EmitToPlayer sends an event to one member's connections in the room only.
func (h *Hub) EmitToPlayer(code string, playerID string, event string, data any) {
	payload, err := json.Marshal(WSEvent{Type: event, Room: code, Data: data})
	if err != nil {
		log.Error().Err(err).Str("roomCode", code).Str("event", event).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[code] {
		if c.userID == playerID {
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// RoomSubscriberCount returns the number of connections in a room.
func (h *Hub) RoomSubscriberCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}
