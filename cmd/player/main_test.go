package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewsync/internal/app"
	"crewsync/internal/config"
	"crewsync/internal/transport/apiclient"
)

func TestOpenTransport(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	memoryStore := &config.Config{Store: config.StoreConfig{Driver: config.DriverMemory}}

	t.Run("failover refuses a private memory store", func(t *testing.T) {
		_, _, err := openTransport(ctx, memoryStore, playerFlags{transport: transportFailover, apiURL: "http://localhost:8080"}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shared store")
	})

	t.Run("store transport runs in process", func(t *testing.T) {
		tr, closeFn, err := openTransport(ctx, memoryStore, playerFlags{transport: transportStore}, logger)
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &app.Service{}, tr)
	})

	t.Run("api transport", func(t *testing.T) {
		tr, closeFn, err := openTransport(ctx, memoryStore, playerFlags{transport: transportAPI, apiURL: "http://localhost:8080"}, logger)
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &apiclient.Client{}, tr)
	})

	t.Run("unknown transport", func(t *testing.T) {
		_, _, err := openTransport(ctx, memoryStore, playerFlags{transport: "carrier-pigeon"}, logger)
		assert.ErrorContains(t, err, "carrier-pigeon")
	})
}
