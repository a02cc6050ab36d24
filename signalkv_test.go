package signalkv

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-morgan/signalkv/config"
	"github.com/dave-morgan/signalkv/kvstore"
	"github.com/dave-morgan/signalkv/signalstore"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_Defaults(t *testing.T) {
	sys, err := Open(nil, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = sys.Close() }()

	require.NotNil(t, sys.Client)
	require.NotNil(t, sys.Store)
	require.NotNil(t, sys.Scopes)
	require.NotNil(t, sys.Logs)
	assert.Nil(t, sys.Metrics)
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "redis"

	_, err := Open(cfg, WithLogger(quietLogger()))
	assert.Error(t, err)
}

func TestOpen_MetricsEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = true

	sys, err := Open(cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = sys.Close() }()

	assert.NotNil(t, sys.Metrics)
}

func TestSystem_EndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.AppID = "e2e"
	cfg.LogLevel = "info"

	sys, err := Open(cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = sys.Close() }()

	assert.Equal(t, "e2e", sys.Logs.DefaultAppID())

	cell, err := sys.Store.StringWithDefault("theme", "light", signalstore.Options{})
	require.NoError(t, err)
	select {
	case <-cell.Hydrated():
	case <-time.After(5 * time.Second):
		t.Fatal("hydration did not settle")
	}
	assert.Equal(t, "light", cell.Get())

	cell.Set("dark")
	sys.Store.Flush()

	stored, found, err := sys.Client.GetString(context.Background(), "theme", kvstore.KeyOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "dark", stored)
}

func TestOpen_PebbleBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendPebble
	cfg.Storage.DataDir = t.TempDir()

	sys, err := Open(cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = sys.Close() }()

	ctx := context.Background()
	require.NoError(t, sys.Client.SetString(ctx, "k", "v", kvstore.KeyOptions{}))
	got, found, err := sys.Client.GetString(ctx, "k", kvstore.KeyOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v", got)
}

func TestOpen_BadgerBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendBadger
	cfg.Storage.DataDir = t.TempDir()

	sys, err := Open(cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = sys.Close() }()

	ctx := context.Background()
	require.NoError(t, sys.Client.SetInt(ctx, "count", 7, kvstore.KeyOptions{}))
	got, found, err := sys.Client.GetInt(ctx, "count", kvstore.KeyOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(7), got)
}
