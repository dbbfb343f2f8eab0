package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"crewsync/internal/app"
	"crewsync/internal/config"
	"crewsync/internal/store/backend"
	httpTransport "crewsync/internal/transport/http"
	"crewsync/internal/transport/ws"
)

var version = "dev"

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"host":            "server.host",
	"port":            "server.port",
	"env":             "server.env",
	"public-url":      "server.public_url",
	"allowed-origins": "server.allowed_origins",
	"store":           "store.driver",
	"dsn":             "store.dsn",
	"migrate":         "store.migrate",
	"allow-self-vote": "game.allow_self_vote",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
}

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "crewsync-server:", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	v := config.New()
	var configFile, envFile string

	cmd := &cobra.Command{
		Use:     "crewsync-server",
		Short:   "Game control API for crewsync rooms.",
		Args:    cobra.NoArgs,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFiles(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&envFile, "env-file", ".env", "path to a .env file")
	fs.StringP("host", "b", "0.0.0.0", "address to bind to (env: CREWSYNC_SERVER_HOST)")
	fs.StringP("port", "p", "8080", "port to listen on (env: CREWSYNC_SERVER_PORT)")
	fs.String("env", "development", "development or production (env: CREWSYNC_SERVER_ENV)")
	fs.String("public-url", "", "base URL used in invite links (env: CREWSYNC_SERVER_PUBLIC_URL)")
	fs.StringSlice("allowed-origins", []string{"*"}, "CORS origins (env: CREWSYNC_SERVER_ALLOWED_ORIGINS)")
	fs.String("store", config.DriverMemory, "memory or postgres (env: CREWSYNC_STORE_DRIVER)")
	fs.String("dsn", "", "postgres connection string (env: CREWSYNC_STORE_DSN)")
	fs.Bool("migrate", true, "apply schema migrations on start (env: CREWSYNC_STORE_MIGRATE)")
	fs.Bool("allow-self-vote", true, "let players vote for themselves (env: CREWSYNC_GAME_ALLOW_SELF_VOTE)")
	fs.String("log-level", "info", "debug, info, warn or error (env: CREWSYNC_LOGGING_LEVEL)")
	fs.String("log-format", "text", "text or json (env: CREWSYNC_LOGGING_FORMAT)")

	config.BindFlags(v, fs, flagKeys)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func run(cfg *config.Config) error {
	logger := config.NewLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting crewsync server",
		"version", version,
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	repos, closeStore, err := backend.Open(startCtx, cfg.Store, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	// Room feed
	hub := ws.NewHub(logger)
	defer hub.Close()

	svc := app.NewService(repos, logger,
		app.WithSettings(cfg.GameSettings()),
		app.WithNotifier(hub),
	)

	server := httpTransport.NewServer(cfg, svc, hub, logger)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	hub.Close()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
