package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types sent over WebSocket.
const (
	EventConnected         = "connected"
	EventCombatStarted     = "combat_started"
	EventTurnResolved      = "turn_resolved"
	EventCombatantFled     = "combatant_fled"
	EventCombatantDefended = "combatant_defended"
	EventCombatEnded       = "combat_ended"
	EventDiceRolled        = "dice_rolled"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type        string `json:"type"`
	AdventureID string `json:"adventure_id"`
	Data        any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action      string `json:"action"` // "subscribe" or "unsubscribe"
	AdventureID string `json:"adventure_id"`
}

// WSConn wraps a WebSocket connection with its user and subscriptions.
type WSConn struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub manages WebSocket connections and adventure-channel subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	adventures  map[string]map[*WSConn]bool // adventureID -> set of connections
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		adventures:  make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, c)
	for adventureID, conns := range h.adventures {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.adventures, adventureID)
		}
	}
	close(c.send)
}

// Subscribe adds a connection to an adventure channel.
func (h *Hub) Subscribe(c *WSConn, adventureID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.adventures[adventureID] == nil {
		h.adventures[adventureID] = make(map[*WSConn]bool)
	}
	h.adventures[adventureID][c] = true
}

// Unsubscribe removes a connection from an adventure channel.
func (h *Hub) Unsubscribe(c *WSConn, adventureID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.adventures[adventureID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.adventures, adventureID)
		}
	}
}

// BroadcastToAdventure sends an event to all connections subscribed to an adventure.
func (h *Hub) BroadcastToAdventure(adventureID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("adventureId", adventureID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.adventures[adventureID] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("userId", c.userID).Str("adventureId", adventureID).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// BroadcastToUser sends an event to a specific user across all their connections.
func (h *Hub) BroadcastToUser(userID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections {
		if c.userID == userID {
			select {
			case c.send <- data:
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

// AdventureSubscriberCount returns the number of connections subscribed to an adventure.
func (h *Hub) AdventureSubscriberCount(adventureID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.adventures[adventureID])
}
