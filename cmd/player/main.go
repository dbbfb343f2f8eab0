package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"crewsync/internal/app"
	"crewsync/internal/config"
	"crewsync/internal/domain"
	"crewsync/internal/store/backend"
	"crewsync/internal/syncloop"
	"crewsync/internal/transport/apiclient"
	"crewsync/internal/transport/ws"
)

var version = "dev"

// Transports
const (
	transportStore    = "store"
	transportAPI      = "api"
	transportFailover = "failover"
)

var flagKeys = map[string]string{
	"store":          "store.driver",
	"dsn":            "store.dsn",
	"poll-interval":  "sync.poll_interval",
	"degraded-after": "sync.degraded_after",
	"log-level":      "logging.level",
	"log-format":     "logging.format",
}

type playerFlags struct {
	configFile string
	envFile    string
	transport  string
	apiURL     string
	feed       bool
	room       string
	name       string
	color      string
	auto       bool
	bot        botOptions
}

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "crewsync-player:", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	v := config.New()
	var pf playerFlags

	cmd := &cobra.Command{
		Use:     "crewsync-player",
		Short:   "Headless crewsync player that polls a room and logs what happens.",
		Args:    cobra.NoArgs,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFiles(pf.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v, pf.configFile)
			if err != nil {
				return err
			}
			if pf.name == "" {
				return errors.New("--name is required")
			}
			return play(cmd.Context(), cfg, pf)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&pf.configFile, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&pf.envFile, "env-file", ".env", "path to a .env file")
	fs.StringVarP(&pf.transport, "transport", "t", transportAPI, "store, api or failover (api first, store second)")
	fs.StringVar(&pf.apiURL, "api-url", "http://localhost:8080", "control API base URL")
	fs.BoolVar(&pf.feed, "feed", true, "subscribe to the room feed to poll early on changes")
	fs.StringVarP(&pf.room, "room", "r", "", "room code to join; empty creates a new room")
	fs.StringVarP(&pf.name, "name", "n", "", "username")
	fs.StringVar(&pf.color, "color", "", "avatar color; empty picks one")
	fs.BoolVar(&pf.auto, "auto", false, "play automatically")
	fs.IntVar(&pf.bot.StartAt, "start-at", 0, "as host, start once this many players joined (0 never)")
	fs.Float64Var(&pf.bot.EmergencyChance, "emergency-chance", 0.05, "chance per action to call a meeting")
	fs.Float64Var(&pf.bot.SkipChance, "skip-chance", 0.2, "chance to skip when voting")
	fs.DurationVar(&pf.bot.Every, "act-every", 3*time.Second, "time between automatic actions")
	fs.String("store", config.DriverMemory, "memory or postgres, for the store transport; failover needs postgres (env: CREWSYNC_STORE_DRIVER)")
	fs.String("dsn", "", "postgres connection string (env: CREWSYNC_STORE_DSN)")
	fs.Duration("poll-interval", 2*time.Second, "time between polls (env: CREWSYNC_SYNC_POLL_INTERVAL)")
	fs.Int("degraded-after", 3, "failed polls before connectivity is degraded (env: CREWSYNC_SYNC_DEGRADED_AFTER)")
	fs.String("log-level", "info", "debug, info, warn or error (env: CREWSYNC_LOGGING_LEVEL)")
	fs.String("log-format", "text", "text or json (env: CREWSYNC_LOGGING_FORMAT)")

	config.BindFlags(v, fs, flagKeys)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func play(parent context.Context, cfg *config.Config, pf playerFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := config.NewLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	transport, closeTransport, err := openTransport(ctx, cfg, pf, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	sess, err := seat(ctx, transport, pf)
	if err != nil {
		return err
	}
	logger = logger.With("roomCode", sess.Room.Code, "playerId", sess.Player.ID)
	logger.Info("seated", "username", sess.Player.Username, "color", sess.Player.Color, "host", sess.Room.IsHost(sess.Player.ID))

	opts := syncloop.Options{
		Interval:      cfg.Sync.PollInterval,
		DegradedAfter: cfg.Sync.DegradedAfter,
		Logger:        logger,
	}
	if pf.feed && pf.transport != transportStore {
		sub, err := ws.NewSubscriber(pf.apiURL, logger)
		if err != nil {
			return err
		}
		opts.Feed = sub
	}

	ended := make(chan struct{})
	var endOnce sync.Once
	handler := func(e *domain.GameEvent) {
		logEvent(logger, e)
		if e.Type == domain.EventGameEnded {
			endOnce.Do(func() { close(ended) })
		}
	}

	loop := syncloop.New(transport, sess.Room.Code, sess.Player.ID, handler, opts)
	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer loop.Stop()

	if pf.auto {
		b := &bot{
			transport: transport,
			code:      sess.Room.Code,
			self:      sess.Player.ID,
			opts:      pf.bot,
			latest:    loop.Latest,
			logger:    logger,
			rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		}
		go b.run(ctx)
	}

	select {
	case <-ctx.Done():
		logger.Info("leaving")
	case <-ended:
	}
	return nil
}

func openTransport(ctx context.Context, cfg *config.Config, pf playerFlags, logger *slog.Logger) (app.Transport, func() error, error) {
	direct := func() (app.Transport, func() error, error) {
		repos, closeStore, err := backend.Open(ctx, cfg.Store, logger)
		if err != nil {
			return nil, nil, err
		}
		return app.NewService(repos, logger, app.WithSettings(cfg.GameSettings())), closeStore, nil
	}

	switch pf.transport {
	case transportStore:
		return direct()
	case transportAPI:
		client, err := apiclient.New(pf.apiURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, func() error { return nil }, nil
	case transportFailover:
		// The secondary must reach the same rooms as the API
		if cfg.Store.Driver != config.DriverPostgres {
			return nil, nil, fmt.Errorf("failover needs a shared store: set --store %s and --dsn", config.DriverPostgres)
		}
		client, err := apiclient.New(pf.apiURL, logger)
		if err != nil {
			return nil, nil, err
		}
		secondary, closeStore, err := direct()
		if err != nil {
			return nil, nil, err
		}
		return app.NewFailover(client, secondary, logger), closeStore, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", pf.transport)
	}
}

func seat(ctx context.Context, transport app.Transport, pf playerFlags) (*app.Session, error) {
	if pf.room == "" {
		return transport.CreateRoom(ctx, app.CreateRoomRequest{Username: pf.name, Color: pf.color})
	}
	return transport.JoinRoom(ctx, app.JoinRoomRequest{Code: pf.room, Username: pf.name, Color: pf.color})
}

func logEvent(logger *slog.Logger, e *domain.GameEvent) {
	level := slog.LevelInfo
	switch e.Type {
	case domain.EventVoteCast, domain.EventTaskProgress:
		level = slog.LevelDebug
	case domain.EventConnectivityDegraded:
		level = slog.LevelWarn
	}
	attrs := []any{"type", e.Type, "phase", e.Phase, "subject", e.PlayerID, "payload", e.Payload}
	if p, ok := e.Payload.(*domain.Progress); ok {
		attrs = append(attrs, "percent", fmt.Sprintf("%.0f", p.Percent()))
	}
	logger.Log(context.Background(), level, "event", attrs...)
}
