package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigOverrides(t *testing.T) {
	cfg, err := loadServerConfig("ex.config.toml")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7080", cfg.Addr)
	assert.Equal(t, "plans.sqlite3", cfg.Database)
	assert.Equal(t, "city", cfg.StoreID)
	assert.Equal(t, 10*time.Second, cfg.BackupInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.Metrics)
	assert.True(t, cfg.RenderOnExit)
	assert.Equal(t, 64, cfg.OutboxSize)
}

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := loadServerConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultServerConfig(), cfg)

	path := filepath.Join(t.TempDir(), "partial.toml")
	require.NoError(t, os.WriteFile(path, []byte(`addr = "0.0.0.0:9000"`), 0o600))
	cfg, err = loadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.True(t, cfg.Metrics, "undefined keys keep their defaults")
	assert.Equal(t, 5*time.Second, cfg.BackupInterval)
}

func TestLoadServerConfigRejectsBadValues(t *testing.T) {
	for name, content := range map[string]string{
		"interval": `backup_interval = "soon"`,
		"negative": `backup_interval = "-1s"`,
		"level":    `log_level = "chatty"`,
		"outbox":   `outbox_size = 0`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := loadServerConfig(path)
			assert.Error(t, err)
		})
	}
}
