package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/askroom/backend/internal/projection"
	"github.com/askroom/backend/internal/rooms"
	"github.com/askroom/backend/internal/store"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains room_id -> set of connections. One store subscription
// is held per room with at least one client: opened when the first
// client joins, closed when the last leaves. Every snapshot is
// projected per viewer (the like id is viewer-specific) and pushed as a
// room_state event.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client
	feeds  map[string]*store.Subscription
	store  store.Store
	logger *zap.Logger
}

// NewHub creates a WebSocket hub over the tree store.
func NewHub(st store.Store, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		feeds:  make(map[string]*store.Subscription),
		store:  st,
		logger: logger,
	}
}

// Register adds a client to a room, opening the room's store
// subscription if this is the first client.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.rooms[c.RoomID] == nil {
		sub, err := h.store.Subscribe(context.Background(), rooms.RoomPath(c.RoomID))
		if err != nil {
			h.mu.Unlock()
			return err
		}
		h.rooms[c.RoomID] = make(map[string]*Client)
		h.feeds[c.RoomID] = sub
		go h.pump(c.RoomID, sub)
	}
	h.rooms[c.RoomID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room_id", c.RoomID))
	return nil
}

// Unregister removes a client from a room, closing the room's store
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.RoomID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.RoomID)
			if sub, ok := h.feeds[c.RoomID]; ok {
				sub.Close()
				delete(h.feeds, c.RoomID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left room", zap.String("client_id", c.ID), zap.String("room_id", c.RoomID))
}

// AudienceCount returns the number of connected clients in a room.
func (h *Hub) AudienceCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// pump forwards store snapshots to the room's clients until the
// subscription is closed.
func (h *Hub) pump(roomID string, sub *store.Subscription) {
	for snapshot := range sub.Events() {
		h.broadcast(roomID, snapshot)
	}
}

// roomState is the room_state event payload: the viewer's projected
// room plus the live audience size.
type roomState struct {
	projection.RoomView
	Audience int `json:"audience"`
}

// broadcast projects a snapshot per viewer and sends it to every client
// in the room. Slow clients drop frames; the next snapshot supersedes.
func (h *Hub) broadcast(roomID string, snapshot *store.Tree) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	audience := h.AudienceCount(roomID)
	for _, c := range clients {
		view := roomState{RoomView: projection.Project(snapshot, c.UserID), Audience: audience}
		data, err := json.Marshal(view)
		if err != nil {
			h.logger.Warn("encode room view", zap.String("room_id", roomID), zap.Error(err))
			continue
		}
		select {
		case c.send <- WSMessage{Event: "room_state", Data: data}:
		default:
			// buffer full, skip; a newer snapshot will follow
		}
	}
}
