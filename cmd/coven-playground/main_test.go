// ABOUTME: Tests for config/data path resolution and the color log handler
// ABOUTME: Uses t.Setenv to exercise each precedence level

package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/2389/coven-playground/internal/config"
)

func TestGetConfigPath(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		configFlag = "/tmp/flag.yaml"
		t.Cleanup(func() { configFlag = "" })
		t.Setenv("COVEN_PLAYGROUND_CONFIG", "/tmp/env.yaml")
		assert.Equal(t, "/tmp/flag.yaml", getConfigPath())
	})

	t.Run("env var", func(t *testing.T) {
		t.Setenv("COVEN_PLAYGROUND_CONFIG", "/tmp/env.yaml")
		assert.Equal(t, "/tmp/env.yaml", getConfigPath())
	})

	t.Run("xdg config home", func(t *testing.T) {
		t.Setenv("COVEN_PLAYGROUND_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, filepath.Join("/xdg", "coven", "playground.yaml"), getConfigPath())
	})
}

func TestGetDataPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "coven"), getDataPath())
}

func TestColorHandler(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	logger := setupLogger(&buf, config.LoggingConfig{Level: "info"}, false, nil)

	logger.With("component", "client").WithGroup("req").Info("request finished", "status", 200)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INF request finished component=client req.status=200")
	assert.NotContains(t, out, "hidden")
}

func TestColorHandler_LiveResponseDropsTimestamp(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	live := &atomic.Bool{}
	logger := setupLogger(&buf, config.LoggingConfig{Level: "warn"}, false, live)

	logger.Warn("before")
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2} WRN before\n$`, buf.String())

	buf.Reset()
	live.Store(true)
	logger.Warn("during", "run", "r1")
	assert.Equal(t, "\nWRN during run=r1\n", buf.String())
}

func TestSetupLogger_VerboseAndJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, config.LoggingConfig{Level: "warn", Format: "json"}, true, nil)

	logger.Debug("debug line", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"debug line"`)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
