package realtime

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000

	defaultPingPeriod = 54 * time.Second
	defaultPongWait   = 60 * time.Second
)

// Hub owns all live websocket state: userID to connection handles for
// presence, plus conversation room membership for typing relays. It is the
// process's only shared mutable map; everything else lives in the stores.
type Hub struct {
	mu sync.RWMutex

	// Map: userID -> set of active clients (multi-device support)
	conns map[uint]map[*Client]struct{}

	// Map: conversationID -> set of userIDs joined to the room
	rooms map[string]map[uint]struct{}

	// Map: userID -> set of conversationIDs they have joined
	userRooms map[uint]map[string]struct{}

	totalConns int
	pingPeriod time.Duration
	pongWait   time.Duration
}

// HubOption tunes hub construction.
type HubOption func(*Hub)

// WithHeartbeat overrides the websocket ping period and pong wait.
func WithHeartbeat(pingPeriod, pongWait time.Duration) HubOption {
	return func(h *Hub) {
		if pingPeriod > 0 {
			h.pingPeriod = pingPeriod
		}
		if pongWait > 0 {
			h.pongWait = pongWait
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		conns:      make(map[uint]map[*Client]struct{}),
		rooms:      make(map[string]map[uint]struct{}),
		userRooms:  make(map[uint]map[string]struct{}),
		pingPeriod: defaultPingPeriod,
		pongWait:   defaultPongWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "chat hub" }

// Register adds a connection for userID. The first connection for a user
// broadcasts their online status to everyone else.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, errors.New("user connection limit reached")
	}

	client := newClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	cameOnline := len(m) == 1
	h.mu.Unlock()

	if cameOnline {
		h.BroadcastUserStatus(userID, "online")
	}
	return client, nil
}

// UnregisterClient removes one connection. When it was the user's last one,
// their room memberships are cleaned up and an offline status is broadcast.
// Safe to call more than once for the same client.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()

	m, ok := h.conns[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := m[client]; !exists {
		h.mu.Unlock()
		return
	}
	delete(m, client)
	h.totalConns--

	if len(m) > 0 {
		h.mu.Unlock()
		return
	}

	// Last connection gone: drop the presence key and all room memberships.
	delete(h.conns, client.UserID)
	if joined, ok := h.userRooms[client.UserID]; ok {
		for roomID := range joined {
			if members, ok := h.rooms[roomID]; ok {
				delete(members, client.UserID)
				if len(members) == 0 {
					delete(h.rooms, roomID)
				}
			}
		}
		delete(h.userRooms, client.UserID)
	}
	h.mu.Unlock()

	h.BroadcastUserStatus(client.UserID, "offline")
}

// IsOnline reports whether a user has at least one live connection.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.conns[userID]
	return ok && len(clients) > 0
}

// HandlesFor returns the user's live clients for direct fan-out.
func (h *Hub) HandlesFor(userID uint) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.conns[userID]
	out := make([]*Client, 0, len(clients))
	for c := range clients {
		out = append(out, c)
	}
	return out
}

// JoinRoom subscribes a connected user to a conversation room.
func (h *Hub) JoinRoom(userID uint, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[userID]; !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[uint]struct{})
	}
	h.rooms[roomID][userID] = struct{}{}

	if h.userRooms[userID] == nil {
		h.userRooms[userID] = make(map[string]struct{})
	}
	h.userRooms[userID][roomID] = struct{}{}
}

// LeaveRoom unsubscribes a user from a conversation room.
func (h *Hub) LeaveRoom(userID uint, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if joined, ok := h.userRooms[userID]; ok {
		delete(joined, roomID)
	}
}

// InRoom reports whether a user is currently joined to a room.
func (h *Hub) InRoom(userID uint, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	joined, ok := h.userRooms[userID]
	if !ok {
		return false
	}
	_, in := joined[roomID]
	return in
}

// SendToUser queues data on every connection the user has. Returns false
// when the user has none, so the caller can fall back to a persisted
// notification.
func (h *Hub) SendToUser(userID uint, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.conns[userID]
	if !ok || len(clients) == 0 {
		return false
	}
	for c := range clients {
		c.TrySend(data)
	}
	return true
}

// EmitToRoom sends data to every user joined to a room, minus the excluded
// ones (normally the originator).
func (h *Hub) EmitToRoom(roomID string, data []byte, exclude ...uint) {
	skip := make(map[uint]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID := range h.rooms[roomID] {
		if _, skipped := skip[userID]; skipped {
			continue
		}
		for c := range h.conns[userID] {
			c.TrySend(data)
		}
	}
}

// BroadcastAll sends data to every connected client.
func (h *Hub) BroadcastAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// BroadcastUserStatus announces an online/offline transition to everyone
// except the user it concerns.
func (h *Hub) BroadcastUserStatus(userID uint, status string) {
	data := UserStatusEvent(userID, status)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, clients := range h.conns {
		if id == userID {
			continue
		}
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// Shutdown gracefully closes every connection and clears hub state. Safe to
// call more than once.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.conns {
		for client := range clients {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}

	h.conns = make(map[uint]map[*Client]struct{})
	h.rooms = make(map[string]map[uint]struct{})
	h.userRooms = make(map[uint]map[string]struct{})
	h.totalConns = 0
	return nil
}
