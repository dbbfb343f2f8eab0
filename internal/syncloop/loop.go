// Package syncloop keeps one client's view of a room converged with the shared
// store by polling it.
package syncloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"crewsync/internal/app"
	"crewsync/internal/domain"
)

const (
	// DefaultInterval is how often a room is polled
	DefaultInterval = 2 * time.Second

	// DefaultDegradedAfter is how many consecutive failed polls mark the
	// connection degraded
	DefaultDegradedAfter = 3
)

// ErrAlreadyStarted is returned when Start is called on a running loop
var ErrAlreadyStarted = errors.New("sync loop already started")

// Source is what the loop reads and settles through
type Source interface {
	Snapshot(ctx context.Context, code string) (*domain.Snapshot, error)
	Settle(ctx context.Context, code string) (*app.SettleResult, error)
}

// Feed delivers hints that a room changed. A hint only triggers an early
// poll; the channel is closed when ctx is done or the feed breaks. The
// returned release func tears the subscription down and blocks until it has.
type Feed interface {
	Subscribe(ctx context.Context, code string) (<-chan struct{}, func(), error)
}

// Handler receives the events derived from consecutive snapshots
type Handler func(event *domain.GameEvent)

// Options configures a Loop
type Options struct {
	Interval      time.Duration
	DegradedAfter int
	Feed          Feed
	Logger        *slog.Logger
}

// Loop polls one room on behalf of one viewer
type Loop struct {
	source   Source
	code     string
	viewerID string
	handler  Handler

	interval      time.Duration
	degradedAfter int
	feed          Feed
	logger        *slog.Logger

	tickMu   sync.Mutex
	latest   *domain.Snapshot
	failures int
	degraded bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	release func()
	done    chan struct{}
	running bool
}

// New creates a loop for viewerID in room code
func New(source Source, code, viewerID string, handler Handler, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.DegradedAfter <= 0 {
		opts.DegradedAfter = DefaultDegradedAfter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if handler == nil {
		handler = func(*domain.GameEvent) {}
	}

	return &Loop{
		source:        source,
		code:          domain.NormalizeCode(code),
		viewerID:      viewerID,
		handler:       handler,
		interval:      opts.Interval,
		degradedAfter: opts.DegradedAfter,
		feed:          opts.Feed,
		logger:        opts.Logger.With("roomCode", domain.NormalizeCode(code), "viewerId", viewerID),
	}
}

// Start begins polling in a background goroutine. The first poll runs
// immediately.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	var hints <-chan struct{}
	l.release = func() {}
	if l.feed != nil {
		ch, release, err := l.feed.Subscribe(ctx, l.code)
		if err != nil {
			l.logger.Warn("room feed unavailable, polling only", "error", err)
		} else {
			hints, l.release = ch, release
		}
	}

	go l.run(ctx, hints)
	return nil
}

// Stop cancels polling, waits for the loop to exit and releases the feed
// subscription before returning. Calling Stop on a stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	cancel, release, done := l.cancel, l.release, l.done
	l.mu.Unlock()

	cancel()
	<-done
	release()
}

// Latest returns the most recent snapshot, or nil before the first success
func (l *Loop) Latest() *domain.Snapshot {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	return l.latest
}

func (l *Loop) run(ctx context.Context, hints <-chan struct{}) {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		case _, ok := <-hints:
			if !ok {
				l.logger.Debug("room feed closed, polling only")
				hints = nil
				continue
			}
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if err := l.Tick(ctx); err != nil && ctx.Err() == nil {
		l.logger.Warn("poll failed", "error", err, "failures", l.failureCount())
	}
}

func (l *Loop) failureCount() int {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	return l.failures
}

// Tick runs one poll: read the room, settle whatever is due, and emit the
// events between the previous snapshot and the new one.
func (l *Loop) Tick(ctx context.Context) error {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	snap, err := l.source.Snapshot(ctx, l.code)
	if err != nil {
		if ctx.Err() == nil {
			l.recordFailure()
		}
		return err
	}

	if snap.Pending().Any() {
		res, err := l.source.Settle(ctx, l.code)
		switch {
		case err != nil:
			l.logger.Warn("settle failed", "error", err)
		case res.Applied():
			l.logger.Debug("settled", "ejected", res.Ejected, "ended", res.Ended)
			if fresh, err := l.source.Snapshot(ctx, l.code); err == nil {
				snap = fresh
			}
		}
	}

	l.recordSuccess()

	if l.latest != nil {
		from, to := l.latest.Room.Phase(), snap.Room.Phase()
		if from != to && !from.CanTransitionTo(to) {
			l.logger.Debug("phases passed between polls", "from", from, "to", to)
		}
	}

	events := domain.Diff(l.latest, snap, l.viewerID)
	l.latest = snap
	for _, event := range events {
		l.handler(event)
	}
	return nil
}

// recordFailure must be called with tickMu held
func (l *Loop) recordFailure() {
	l.failures++
	if l.failures == l.degradedAfter && !l.degraded {
		l.degraded = true
		l.logger.Warn("connectivity degraded", "failures", l.failures)
		l.handler(domain.NewEvent(domain.EventConnectivityDegraded, l.code, &domain.ConnectivityPayload{Failures: l.failures}))
	}
}

// recordSuccess must be called with tickMu held
func (l *Loop) recordSuccess() {
	if l.degraded {
		l.logger.Info("connectivity restored", "failures", l.failures)
		l.handler(domain.NewEvent(domain.EventConnectivityRestored, l.code, &domain.ConnectivityPayload{Failures: l.failures}))
	}
	l.failures = 0
	l.degraded = false
}
