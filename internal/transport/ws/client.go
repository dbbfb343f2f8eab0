package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10

	// Subscribers only ever send pings
	maxInbound = 512

	// Pending hints per subscriber; hints past this are dropped
	hintBacklog = 16
)

// member is one websocket subscribed to a room's feed
type member struct {
	conn     *websocket.Conn
	hub      *Hub
	roomCode string
	logger   *slog.Logger

	outbox chan []byte
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func newMember(conn *websocket.Conn, hub *Hub, roomCode string, logger *slog.Logger) *member {
	return &member{
		conn:     conn,
		hub:      hub,
		roomCode: roomCode,
		logger:   logger.With("roomCode", roomCode),
		outbox:   make(chan []byte, hintBacklog),
		done:     make(chan struct{}),
	}
}

func (m *member) push(msg *ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("failed to encode feed message", "type", msg.Type, "error", err)
		return
	}
	m.enqueue(data)
}

// enqueue never blocks the hub. A dropped hint only delays the
// subscriber until its next regular poll.
func (m *member) enqueue(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	select {
	case m.outbox <- data:
	default:
		m.logger.Debug("feed backlog full, hint dropped")
	}
}

// close stops the writer, which sends a close frame and releases the
// connection, unblocking the reader
func (m *member) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

// serve blocks until the subscriber goes away or the hub closes it
func (m *member) serve() {
	go m.writeLoop()

	defer func() {
		m.hub.unregister(m)
		m.close()
	}()

	m.conn.SetReadLimit(maxInbound)
	m.extendDeadline()
	m.conn.SetPongHandler(func(string) error {
		m.extendDeadline()
		return nil
	})

	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				m.logger.Debug("feed read failed", "error", err)
			}
			return
		}
		m.reply(data)
	}
}

func (m *member) extendDeadline() {
	m.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (m *member) writeLoop() {
	pings := time.NewTicker(pingInterval)
	defer func() {
		pings.Stop()
		m.conn.Close()
	}()

	for {
		select {
		case <-m.done:
			m.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case data := <-m.outbox:
			if m.write(websocket.TextMessage, data) != nil {
				m.close()
				return
			}
		case <-pings.C:
			if m.write(websocket.PingMessage, nil) != nil {
				m.close()
				return
			}
		}
	}
}

func (m *member) write(kind int, data []byte) error {
	m.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return m.conn.WriteMessage(kind, data)
}

func (m *member) reply(data []byte) {
	var in ClientMessage
	if err := json.Unmarshal(data, &in); err != nil || in.Type != MsgPing {
		out := NewServerMessage(MsgError, m.roomCode)
		out.Error = &ErrorPayload{Code: ErrCodeInvalidMessage, Message: "only ping messages are accepted"}
		m.push(out)
		return
	}
	m.push(NewServerMessage(MsgPong, m.roomCode))
}
