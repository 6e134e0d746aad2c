package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/presence"
	"github.com/platinummonkey/permissions/pkg/storage"
)

func TestOpenBackend(t *testing.T) {
	logger := observability.OrDiscard(nil)

	cfg := storage.DefaultConfig()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "data", "permissions.db")
	store, err := openBackend(cfg, logger, nil)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Init(context.Background()))
	assert.Equal(t, "sqlite", store.Kind())

	cfg.Type = "mysql"
	_, err = openBackend(cfg, logger, nil)
	assert.ErrorContains(t, err, "mysql host is required")

	cfg.Type = "postgres"
	_, err = openBackend(cfg, logger, nil)
	assert.ErrorContains(t, err, "postgres URL is required")

	cfg.Type = "mongo"
	_, err = openBackend(cfg, logger, nil)
	assert.EqualError(t, err, "unknown backend: mongo")
}

func TestOnlineIdentities(t *testing.T) {
	tracker := presence.NewTracker()
	ctx := context.Background()
	require.NoError(t, tracker.Join(ctx, presence.Session{Identity: "b", PlayerID: 2}))
	require.NoError(t, tracker.Join(ctx, presence.Session{Identity: "a", PlayerID: 1}))

	assert.Equal(t, []string{"a", "b"}, onlineIdentities(tracker)())
}

func TestRun_MissingConfig(t *testing.T) {
	err := run(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read config")
}
