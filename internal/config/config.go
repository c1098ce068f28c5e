// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

// Package config loads and validates application configuration from
// layered sources: struct defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root application configuration.
type Config struct {
	NATS    NATSConfig    `koanf:"nats"`
	Data    DataConfig    `koanf:"data"`
	Ingest  IngestConfig  `koanf:"ingest"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// NATSConfig controls the event log (NATS JetStream).
type NATSConfig struct {
	// URL is the NATS server address when EmbeddedServer is false.
	URL string `koanf:"url" validate:"required_if=EmbeddedServer false"`

	// EmbeddedServer runs an in-process nats-server with JetStream.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory for the embedded server.
	StoreDir string `koanf:"store_dir"`

	MaxMemory int64 `koanf:"max_memory"`
	MaxStore  int64 `koanf:"max_store"`

	// StreamName is the JetStream stream holding radio events.
	StreamName string `koanf:"stream_name" validate:"required"`

	// StreamRetentionDays bounds how long events are kept.
	StreamRetentionDays int `koanf:"stream_retention_days" validate:"gt=0"`

	// ConnectAttempts is the bounded startup retry budget. Exhausting
	// it is a fatal startup error.
	ConnectAttempts int `koanf:"connect_attempts" validate:"gt=0"`

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	// PrimaryWaitTimeout bounds how long startup waits for the
	// JetStream cluster to report a writable primary.
	PrimaryWaitTimeout time.Duration `koanf:"primary_wait_timeout"`

	// PrimaryPollInterval is the poll period while waiting for a primary.
	PrimaryPollInterval time.Duration `koanf:"primary_poll_interval"`

	// FeedCooldown is the fixed wait before re-establishing the change
	// feed after an error or closure.
	FeedCooldown time.Duration `koanf:"feed_cooldown"`

	// StatusInterval is the period of the processed-message status log.
	StatusInterval time.Duration `koanf:"status_interval"`
}

// DataConfig controls the file-backed registries.
type DataConfig struct {
	// Dir is the root data directory.
	Dir string `koanf:"dir"`

	// TalkgroupsDir holds talkgroups.csv and <system>-talkgroups.csv.
	TalkgroupsDir string `koanf:"talkgroups_dir" validate:"required"`

	// AliasFile is the system-alias.csv path.
	AliasFile string `koanf:"alias_file" validate:"required"`

	// SaveInterval is the periodic registry save cadence.
	SaveInterval time.Duration `koanf:"save_interval" validate:"gt=0"`
}

// IngestConfig controls the write path.
type IngestConfig struct {
	// DedupWindow is the duplicate suppression window.
	DedupWindow time.Duration `koanf:"dedup_window"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// Version is reported by /api/version.
	Version string `koanf:"version"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamName:          "RADIO_EVENTS",
			StreamRetentionDays: 7,
			ConnectAttempts:     5,
			ConnectTimeout:      60 * time.Second,
			PrimaryWaitTimeout:  2 * time.Minute,
			PrimaryPollInterval: 2 * time.Second,
			FeedCooldown:        5 * time.Second,
			StatusInterval:      30 * time.Second,
		},
		Data: DataConfig{
			Dir:           "data",
			TalkgroupsDir: "data/talkgroups",
			AliasFile:     "data/system-alias.csv",
			SaveInterval:  5 * time.Minute,
		},
		Ingest: IngestConfig{
			DedupWindow: 5 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			Timeout:         30 * time.Second,
			Version:         "dev",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// structValidator returns the singleton validator. The instance caches
// struct metadata, so sharing one across calls is both safe and cheap.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that required configuration is present and valid.
// A validation failure here is fatal at process start.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: %s failed %q validation (got %v)",
				fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
