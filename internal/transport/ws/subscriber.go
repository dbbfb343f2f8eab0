package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crewsync/internal/domain"
)

// Subscriber dials a server's room feed. It satisfies syncloop.Feed.
type Subscriber struct {
	base   *url.URL
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewSubscriber creates a subscriber for the server at serverURL
// (http, https, ws or wss)
func NewSubscriber(serverURL string, logger *slog.Logger) (*Subscriber, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	return &Subscriber{
		base: u,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// URL returns the feed endpoint for code
func (s *Subscriber) URL(code string) string {
	u := *s.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/rooms/" + domain.NormalizeCode(code)
	return u.String()
}

// Subscribe opens the feed for code. The returned channel yields one value
// per burst of hints and is closed when ctx is done, the connection drops or
// release is called. release closes the connection and returns once every
// goroutine of the subscription has exited; it may be called more than once.
func (s *Subscriber) Subscribe(ctx context.Context, code string) (<-chan struct{}, func(), error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.URL(code), nil)
	if err != nil {
		if resp != nil {
			return nil, nil, fmt.Errorf("subscribe %s: %w (status %d)", code, err, resp.StatusCode)
		}
		return nil, nil, fmt.Errorf("subscribe %s: %w", code, err)
	}

	hints := make(chan struct{}, 1)
	quit := make(chan struct{})
	readerDone := make(chan struct{})
	var quitOnce sync.Once
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-quit:
		case <-readerDone:
			conn.Close()
			return
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}()

	go func() {
		defer wg.Done()
		defer close(hints)
		defer close(readerDone)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Debug("room feed closed", "roomCode", code, "error", err)
				}
				return
			}

			var msg ServerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Type != MsgRoomChanged {
				continue
			}

			select {
			case hints <- struct{}{}:
			default:
			}
		}
	}()

	release := func() {
		quitOnce.Do(func() { close(quit) })
		wg.Wait()
	}
	return hints, release, nil
}
