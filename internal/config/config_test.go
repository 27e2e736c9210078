// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.MinPeriod)
	assert.Equal(t, 60*time.Second, cfg.DebugPollPeriod)
	assert.Equal(t, time.Second, cfg.FadeFast)
	assert.Equal(t, 10*time.Second, cfg.FadeSlow)
	assert.Equal(t, "file", cfg.StateStore)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9090"
debug_poll_period: 30s
state_store: badger
telemetry:
  enabled: true
  exporter: http
  endpoint: collector:4318
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.DebugPollPeriod)
	assert.Equal(t, "badger", cfg.StateStore)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http", cfg.Telemetry.Exporter)

	// Untouched keys keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.MinPeriod)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `listen_addr: ":9090"`)
	t.Setenv("DISPSYNC_LISTEN", ":7070")
	t.Setenv("DISPSYNC_FADE_SLOW", "4s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, 4*time.Second, cfg.FadeSlow)
}

func TestLoad_StrictFileRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `listen_adddr: ":9090"`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_InvalidStateStore(t *testing.T) {
	t.Setenv("DISPSYNC_STATE_STORE", "postgres")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state_store")
}

func TestLoad_InvalidTelemetryExporter(t *testing.T) {
	t.Setenv("DISPSYNC_OTEL_ENABLED", "true")
	t.Setenv("DISPSYNC_OTEL_EXPORTER", "udp")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exporter")
}

func TestParseHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "not-a-number")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")

	assert.Equal(t, 7, ParseInt("X_INT", 7))
	assert.Equal(t, 3*time.Second, ParseDuration("X_DUR", 3*time.Second))
	assert.True(t, ParseBool("X_BOOL", true))
}

func TestParseHelpers_ReadEnvironment(t *testing.T) {
	t.Setenv("X_STR", "hello")
	t.Setenv("X_INT", "42")
	t.Setenv("X_BOOL", "yes")
	t.Setenv("X_FLOAT", "0.25")

	assert.Equal(t, "hello", ParseString("X_STR", "fallback"))
	assert.Equal(t, 42, ParseInt("X_INT", 0))
	assert.True(t, ParseBool("X_BOOL", false))
	assert.Equal(t, 0.25, ParseFloat("X_FLOAT", 1.0))
}
