package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"crewsync/internal/domain"
)

// RoomFinder resolves a room code before a subscription is accepted
type RoomFinder interface {
	FindRoom(ctx context.Context, code string) (*domain.Room, error)
}

// Handler handles room feed upgrade requests
type Handler struct {
	hub      *Hub
	rooms    RoomFinder
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new room feed handler
func NewHandler(hub *Hub, rooms RoomFinder, logger *slog.Logger) *Handler {
	return &Handler{
		hub:   hub,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 512,
			CheckOrigin: func(r *http.Request) bool {
				// The feed only carries change hints
				return true
			},
		},
		logger: logger,
	}
}

// ServeHTTP handles upgrade requests carrying the room in ?roomCode=
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Serve(w, r, r.URL.Query().Get("roomCode"))
}

// Serve upgrades the request and subscribes it to roomCode
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, roomCode string) {
	if roomCode == "" {
		http.Error(w, "roomCode is required", http.StatusBadRequest)
		return
	}

	room, err := h.rooms.FindRoom(r.Context(), roomCode)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Warn("room lookup failed", "roomCode", roomCode, "error", err)
		http.Error(w, "Room lookup failed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	m := newMember(conn, h.hub, room.Code, h.logger)
	if !h.hub.register(m) {
		conn.Close()
		return
	}

	h.logger.Debug("room feed subscribed", "roomCode", room.Code, "remote", r.RemoteAddr)
	m.push(NewServerMessage(MsgSubscribed, room.Code))

	m.serve()
}
