// SPDX-License-Identifier: MIT

// Package config loads daemon configuration with precedence ENV > file >
// defaults. The YAML file is parsed strictly: unknown keys are an error.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the effective daemon configuration.
type Config struct {
	// ListenAddr is the HTTP API listen address.
	ListenAddr string `yaml:"listen_addr"`
	// DataDir holds persistent state: mode flags, check history, caches.
	DataDir string `yaml:"data_dir"`
	// DefaultQuery seeds the initial display parameters, e.g.
	// "?output=a.jpg&refresh=30".
	DefaultQuery string `yaml:"default_query"`

	// MinPeriod is the floor for the polling period.
	MinPeriod time.Duration `yaml:"min_period"`
	// DebugPollPeriod is how often debug mode polls regardless of the
	// refresh interval.
	DebugPollPeriod time.Duration `yaml:"debug_poll_period"`

	// FadeFast and FadeSlow are the two cross-fade durations.
	FadeFast time.Duration `yaml:"fade_fast"`
	FadeSlow time.Duration `yaml:"fade_slow"`

	// ExtractWaitTimeout bounds waits on in-flight metadata extractions.
	ExtractWaitTimeout time.Duration `yaml:"extract_wait_timeout"`
	// MetaCacheTTL is how long extracted metadata stays cached.
	MetaCacheTTL time.Duration `yaml:"meta_cache_ttl"`
	// RedisAddr switches the metadata cache to Redis when non-empty.
	RedisAddr string `yaml:"redis_addr"`

	// StateStore selects the mode flag store: "file", "badger" or "memory".
	StateStore string `yaml:"state_store"`
	// HistoryRetention bounds how long check outcomes are kept.
	HistoryRetention time.Duration `yaml:"history_retention"`

	// LogLevel is a zerolog level name ("debug", "info", ...).
	LogLevel string `yaml:"log_level"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TelemetryConfig holds the OTLP tracing settings.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // "grpc" or "http"
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ListenAddr:         ":8080",
		DataDir:            "./data",
		MinPeriod:          5 * time.Second,
		DebugPollPeriod:    60 * time.Second,
		FadeFast:           time.Second,
		FadeSlow:           10 * time.Second,
		ExtractWaitTimeout: 10 * time.Second,
		MetaCacheTTL:       24 * time.Hour,
		StateStore:         "file",
		HistoryRetention:   7 * 24 * time.Hour,
		LogLevel:           "info",
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then environment overrides, then
// validation.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile merges the YAML file at path into cfg. Decoding is strict so a
// typo in a key fails loudly instead of being silently ignored.
func loadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = ParseString("DISPSYNC_LISTEN", cfg.ListenAddr)
	cfg.DataDir = ParseString("DISPSYNC_DATA_DIR", cfg.DataDir)
	cfg.DefaultQuery = ParseString("DISPSYNC_DEFAULT_QUERY", cfg.DefaultQuery)

	cfg.MinPeriod = ParseDuration("DISPSYNC_MIN_PERIOD", cfg.MinPeriod)
	cfg.DebugPollPeriod = ParseDuration("DISPSYNC_DEBUG_POLL_PERIOD", cfg.DebugPollPeriod)
	cfg.FadeFast = ParseDuration("DISPSYNC_FADE_FAST", cfg.FadeFast)
	cfg.FadeSlow = ParseDuration("DISPSYNC_FADE_SLOW", cfg.FadeSlow)
	cfg.ExtractWaitTimeout = ParseDuration("DISPSYNC_EXTRACT_WAIT_TIMEOUT", cfg.ExtractWaitTimeout)
	cfg.MetaCacheTTL = ParseDuration("DISPSYNC_META_CACHE_TTL", cfg.MetaCacheTTL)
	cfg.RedisAddr = ParseString("DISPSYNC_REDIS_ADDR", cfg.RedisAddr)
	cfg.StateStore = ParseString("DISPSYNC_STATE_STORE", cfg.StateStore)
	cfg.HistoryRetention = ParseDuration("DISPSYNC_HISTORY_RETENTION", cfg.HistoryRetention)
	cfg.LogLevel = ParseString("DISPSYNC_LOG_LEVEL", cfg.LogLevel)

	cfg.Telemetry.Enabled = ParseBool("DISPSYNC_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("DISPSYNC_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("DISPSYNC_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat("DISPSYNC_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	switch c.StateStore {
	case "file", "badger", "memory":
	default:
		return fmt.Errorf("state_store must be one of file, badger, memory (got %q)", c.StateStore)
	}
	if c.MinPeriod <= 0 {
		return fmt.Errorf("min_period must be positive")
	}
	if c.FadeFast <= 0 || c.FadeSlow <= 0 {
		return fmt.Errorf("fade durations must be positive")
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry exporter must be grpc or http (got %q)", c.Telemetry.Exporter)
		}
	}
	return nil
}
