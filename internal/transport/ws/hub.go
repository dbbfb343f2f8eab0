// Package ws serves and consumes the room feed: websocket hints that a room
// changed so pollers can read it before their next tick.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"crewsync/internal/domain"
)

// Hub tracks feed subscribers per room and fans out change hints
type Hub struct {
	rooms  map[string]map[*member]struct{}
	mu     sync.RWMutex
	logger *slog.Logger
	closed bool
}

// NewHub creates a new room feed hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*member]struct{}),
		logger: logger,
	}
}

// RoomChanged tells every subscriber of code to poll now
func (h *Hub) RoomChanged(code string) {
	code = domain.NormalizeCode(code)
	data, err := json.Marshal(NewServerMessage(MsgRoomChanged, code))
	if err != nil {
		h.logger.Error("failed to encode room hint", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for m := range h.rooms[code] {
		m.enqueue(data)
	}
}

// ClientCount returns the number of feed subscribers of code
func (h *Hub) ClientCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[domain.NormalizeCode(code)])
}

// RoomCount returns the number of rooms with at least one subscriber
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Close disconnects every subscriber and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]map[*member]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, members := range rooms {
		for m := range members {
			m.close()
		}
	}
}

func (h *Hub) register(c *member) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	clients, ok := h.rooms[c.roomCode]
	if !ok {
		clients = make(map[*member]struct{})
		h.rooms[c.roomCode] = clients
	}
	clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[c.roomCode]
	if !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, c.roomCode)
	}
}
