package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"crewsync/internal/domain"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CREWSYNC_SERVER_PORT
const EnvPrefix = "CREWSYNC"

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Game    GameConfig    `mapstructure:"game"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	Env            string        `mapstructure:"env"` // "development" or "production"
	PublicURL      string        `mapstructure:"public_url"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit"` // writes per second per client
	RateBurst      int           `mapstructure:"rate_burst"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

// StoreConfig selects and configures the shared data store
type StoreConfig struct {
	Driver       string        `mapstructure:"driver"` // "memory" or "postgres"
	DSN          string        `mapstructure:"dsn"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	Migrate      bool          `mapstructure:"migrate"`
	Debug        bool          `mapstructure:"debug"`
}

// GameConfig holds game-related configuration
type GameConfig struct {
	MinPlayers    int  `mapstructure:"min_players"`
	MaxPlayers    int  `mapstructure:"max_players"`
	AllowSelfVote bool `mapstructure:"allow_self_vote"`
}

// SyncConfig tunes the polling clients
type SyncConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	DegradedAfter int           `mapstructure:"degraded_after"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

var defaults = map[string]any{
	"server.port":            "8080",
	"server.host":            "0.0.0.0",
	"server.env":             "development",
	"server.public_url":      "",
	"server.allowed_origins": []string{"*"},
	"server.rate_limit":      10.0,
	"server.rate_burst":      20,
	"server.shutdown_grace":  30 * time.Second,

	"store.driver":         DriverMemory,
	"store.dsn":            "",
	"store.query_timeout":  5 * time.Second,
	"store.max_open_conns": 10,
	"store.migrate":        true,
	"store.debug":          false,

	"game.min_players":     domain.DefaultGameSettings().MinPlayers,
	"game.max_players":     domain.DefaultGameSettings().MaxPlayers,
	"game.allow_self_vote": true,

	"sync.poll_interval":  2 * time.Second,
	"sync.degraded_after": 3,

	"logging.level":  "info",
	"logging.format": "text",
}

// New returns a viper instance with defaults and environment lookup set up
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// BindFlags binds every flag in fs that has an entry in keys to its viper key.
// A flag only wins over the environment and the config file when the user set it.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	fs.VisitAll(func(f *pflag.Flag) {
		if key, ok := keys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	})
}

// LoadEnvFiles loads .env style files into the process environment. Missing
// files are skipped; variables already set win.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads the optional config file and decodes v into a validated Config
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if floor := domain.DefaultGameSettings().MinPlayers; c.Game.MinPlayers < floor {
		return fmt.Errorf("game.min_players must be at least %d", floor)
	}
	if c.Game.MaxPlayers < c.Game.MinPlayers {
		return errors.New("game.max_players must not be below game.min_players")
	}
	if ceiling := domain.DefaultGameSettings().MaxPlayers; c.Game.MaxPlayers > ceiling {
		return fmt.Errorf("game.max_players must be at most %d", ceiling)
	}
	if c.Sync.PollInterval <= 0 {
		return errors.New("sync.poll_interval must be positive")
	}
	if c.Sync.DegradedAfter < 1 {
		return errors.New("sync.degraded_after must be at least 1")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// GameSettings converts the game section into domain settings
func (c *Config) GameSettings() domain.GameSettings {
	return domain.GameSettings{
		MinPlayers:    c.Game.MinPlayers,
		MaxPlayers:    c.Game.MaxPlayers,
		AllowSelfVote: c.Game.AllowSelfVote,
	}
}

// NewLogger builds the process logger described by the logging section
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLogLevel maps a level name to its slog level, defaulting to info
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
