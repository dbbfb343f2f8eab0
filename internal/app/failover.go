package app

import (
	"context"
	"errors"
	"log/slog"

	"crewsync/internal/domain"

	"github.com/google/uuid"
)

// Failover sends every call to the primary transport and retries it on the
// secondary when the primary reports the store unavailable. Ids are assigned
// before the first attempt, so a write that reached the store through the
// primary is not applied twice by the retry.
type Failover struct {
	primary   Transport
	secondary Transport
	logger    *slog.Logger
}

// NewFailover creates a failover transport
func NewFailover(primary, secondary Transport, logger *slog.Logger) *Failover {
	return &Failover{primary: primary, secondary: secondary, logger: logger}
}

func call[T any](ctx context.Context, f *Failover, op string, fn func(Transport) (T, error)) (T, error) {
	res, err := fn(f.primary)
	if err == nil || !errors.Is(err, domain.ErrTransientStore) || ctx.Err() != nil {
		return res, err
	}

	f.logger.Warn("primary transport unavailable, using secondary", "op", op, "error", err)
	return fn(f.secondary)
}

func withID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func (f *Failover) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Session, error) {
	req.PlayerID = withID(req.PlayerID)
	req.RoomID = withID(req.RoomID)
	return call(ctx, f, "create_room", func(t Transport) (*Session, error) {
		return t.CreateRoom(ctx, req)
	})
}

func (f *Failover) JoinRoom(ctx context.Context, req JoinRoomRequest) (*Session, error) {
	req.PlayerID = withID(req.PlayerID)
	return call(ctx, f, "join_room", func(t Transport) (*Session, error) {
		return t.JoinRoom(ctx, req)
	})
}

func (f *Failover) Snapshot(ctx context.Context, code string) (*domain.Snapshot, error) {
	return call(ctx, f, "snapshot", func(t Transport) (*domain.Snapshot, error) {
		return t.Snapshot(ctx, code)
	})
}

func (f *Failover) StartGame(ctx context.Context, code, playerID string) (*domain.Room, error) {
	return call(ctx, f, "start_game", func(t Transport) (*domain.Room, error) {
		return t.StartGame(ctx, code, playerID)
	})
}

func (f *Failover) CallEmergency(ctx context.Context, code, playerID string) (*domain.Room, error) {
	return call(ctx, f, "call_emergency", func(t Transport) (*domain.Room, error) {
		return t.CallEmergency(ctx, code, playerID)
	})
}

func (f *Failover) SubmitVote(ctx context.Context, code string, req VoteRequest) error {
	req.VoteID = withID(req.VoteID)
	_, err := call(ctx, f, "submit_vote", func(t Transport) (struct{}, error) {
		return struct{}{}, t.SubmitVote(ctx, code, req)
	})
	return err
}

func (f *Failover) ReportTasks(ctx context.Context, code, playerID string, completed int) error {
	_, err := call(ctx, f, "report_tasks", func(t Transport) (struct{}, error) {
		return struct{}{}, t.ReportTasks(ctx, code, playerID, completed)
	})
	return err
}

func (f *Failover) SendMessage(ctx context.Context, code string, req MessageRequest) (*domain.Message, error) {
	req.MessageID = withID(req.MessageID)
	return call(ctx, f, "send_message", func(t Transport) (*domain.Message, error) {
		return t.SendMessage(ctx, code, req)
	})
}

func (f *Failover) Messages(ctx context.Context, code string) ([]domain.Message, error) {
	return call(ctx, f, "messages", func(t Transport) ([]domain.Message, error) {
		return t.Messages(ctx, code)
	})
}

func (f *Failover) Settle(ctx context.Context, code string) (*SettleResult, error) {
	return call(ctx, f, "settle", func(t Transport) (*SettleResult, error) {
		return t.Settle(ctx, code)
	})
}

var (
	_ Transport = (*Service)(nil)
	_ Transport = (*Failover)(nil)
)
