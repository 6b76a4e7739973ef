package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candralab/stanza/config"
)

func restoreDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestInitLoggingAppliesConfigSection(t *testing.T) {
	restoreDefaultLogger(t)
	logPath := filepath.Join(t.TempDir(), "stanza.log")

	logCfg := config.LoggerConfig{Level: "debug", Output: logPath, Format: "json"}
	cleanup, err := initLogging(&CLI{}, logCfg)
	require.NoError(t, err)
	defer cleanup()

	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	slog.Debug("config section active")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"config section active"`)
}

func TestInitLoggingFlagsOverrideConfig(t *testing.T) {
	restoreDefaultLogger(t)

	logCfg := config.LoggerConfig{Level: "debug", Output: "stderr", Format: "json"}
	cli := &CLI{LogLevel: "error"}
	cleanup, err := initLogging(cli, logCfg)
	require.NoError(t, err)
	defer cleanup()

	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))
}

func TestInitLoggingRejectsBadLevel(t *testing.T) {
	restoreDefaultLogger(t)

	_, err := initLogging(&CLI{LogLevel: "loud"}, config.LoggerConfig{Level: "info"})
	assert.Error(t, err)
}

func TestLoadConfigAndLoggerFromFile(t *testing.T) {
	restoreDefaultLogger(t)
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	content := "logger:\n  level: \"debug\"\n  format: \"simple\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, cleanup, err := loadConfigAndLogger(&CLI{Config: configPath})
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}
