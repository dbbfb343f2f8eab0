// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"crewsync/internal/config"
	"crewsync/internal/store"
	"crewsync/internal/store/memory"
	"crewsync/internal/store/postgres"
)

// Open returns the repositories for cfg and a func that releases them.
// The postgres schema is migrated first when cfg.Migrate is set.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Repositories, func() error, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, state is lost on exit and not shared between processes")
		return memory.New().Repositories(), func() error { return nil }, nil

	case config.DriverPostgres:
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, cfg.DSN); err != nil {
				return store.Repositories{}, nil, err
			}
			logger.Info("database migrated")
		}

		db, err := postgres.Open(postgres.Options{
			DSN:          cfg.DSN,
			QueryTimeout: cfg.QueryTimeout,
			MaxOpenConns: cfg.MaxOpenConns,
			Debug:        cfg.Debug,
		})
		if err != nil {
			return store.Repositories{}, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return store.Repositories{}, nil, err
		}
		return db.Repositories(), db.Close, nil

	default:
		return store.Repositories{}, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
