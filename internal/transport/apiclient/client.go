// Package apiclient reaches the game control API over HTTP. It satisfies
// app.Transport, so a player can use it interchangeably with a direct store
// connection or as one side of a failover pair.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crewsync/internal/app"
	"crewsync/internal/domain"
)

// DefaultTimeout bounds a single API call
const DefaultTimeout = 10 * time.Second

// APIError is an error answered by the control API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap returns the domain sentinel behind the error code. Gateway and
// throttling statuses without a known code count as a transient outage.
func (e *APIError) Unwrap() error {
	if err := domain.ErrorFromCode(e.Code); err != nil {
		return err
	}
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.ErrTransientStore
	}
	return nil
}

// Client calls the control API
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the API served at baseURL
func New(baseURL string, logger *slog.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type playerBody struct {
	PlayerID string `json:"player_id"`
}

type tasksBody struct {
	PlayerID       string `json:"player_id"`
	TasksCompleted int    `json:"tasks_completed"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateRoom creates a room hosted by a new player
func (c *Client) CreateRoom(ctx context.Context, req app.CreateRoomRequest) (*app.Session, error) {
	var sess app.Session
	if err := c.do(ctx, http.MethodPost, "/api/rooms", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// JoinRoom seats a new player in an existing room
func (c *Client) JoinRoom(ctx context.Context, req app.JoinRoomRequest) (*app.Session, error) {
	var sess app.Session
	if err := c.do(ctx, http.MethodPost, "/api/rooms/join", req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Snapshot reads the full shared state of a room
func (c *Client) Snapshot(ctx context.Context, code string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := c.do(ctx, http.MethodGet, roomPath(code, ""), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// StartGame starts the game as host
func (c *Client) StartGame(ctx context.Context, code, playerID string) (*domain.Room, error) {
	var room domain.Room
	if err := c.do(ctx, http.MethodPost, roomPath(code, "start"), playerBody{PlayerID: playerID}, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// CallEmergency opens a meeting
func (c *Client) CallEmergency(ctx context.Context, code, playerID string) (*domain.Room, error) {
	var room domain.Room
	if err := c.do(ctx, http.MethodPost, roomPath(code, "emergency"), playerBody{PlayerID: playerID}, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// SubmitVote casts a ballot
func (c *Client) SubmitVote(ctx context.Context, code string, req app.VoteRequest) error {
	return c.do(ctx, http.MethodPost, roomPath(code, "vote"), req, nil)
}

// ReportTasks publishes the caller's own task count
func (c *Client) ReportTasks(ctx context.Context, code, playerID string, completed int) error {
	return c.do(ctx, http.MethodPost, roomPath(code, "task"), tasksBody{PlayerID: playerID, TasksCompleted: completed}, nil)
}

// SendMessage posts a chat line
func (c *Client) SendMessage(ctx context.Context, code string, req app.MessageRequest) (*domain.Message, error) {
	var msg domain.Message
	if err := c.do(ctx, http.MethodPost, roomPath(code, "message"), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages lists recent chat, oldest first
func (c *Client) Messages(ctx context.Context, code string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := c.do(ctx, http.MethodGet, roomPath(code, "messages"), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Settle asks the server to apply whatever writes the room has due
func (c *Client) Settle(ctx context.Context, code string) (*app.SettleResult, error) {
	var res app.SettleResult
	if err := c.do(ctx, http.MethodPost, roomPath(code, "settle"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func roomPath(code, action string) string {
	p := "/api/rooms/" + url.PathEscape(domain.NormalizeCode(code))
	if action != "" {
		p += "/" + action
	}
	return p
}

// do sends one request and decodes the envelope's data into out. Network
// failures are reported as ErrTransientStore; caller cancellation is passed
// through unchanged.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		apiErr := &APIError{Status: resp.StatusCode, Code: "BAD_RESPONSE", Message: err.Error()}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", domain.ErrTransientStore, apiErr)
		}
		return apiErr
	}

	if !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		c.logger.Debug("api error", "method", method, "path", path, "status", apiErr.Status, "code", apiErr.Code)
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

var _ app.Transport = (*Client)(nil)

// IsAPIError reports whether err came back from the API rather than the network
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
