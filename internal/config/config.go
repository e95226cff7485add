// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package config loads the daemon configuration with layered precedence:
// built-in defaults, then an optional YAML file, then environment
// variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the daemon configuration.
type Config struct {
	Gateway GatewayConfig `koanf:"gateway"`
	Auth    AuthConfig    `koanf:"auth"`
	Sync    SyncConfig    `koanf:"sync"`
	Audit   AuditConfig   `koanf:"audit"`
	Status  StatusConfig  `koanf:"status"`
	Logging LoggingConfig `koanf:"logging"`
}

// GatewayConfig points the mirror at the helpdesk gateway.
type GatewayConfig struct {
	// URL is the gateway base URL, e.g. "https://helpdesk.example.com/api".
	URL string `koanf:"url"`
	// Timeout bounds ordinary requests.
	Timeout time.Duration `koanf:"timeout"`
	// BulkTimeout bounds the heavy read endpoints (audit snapshot,
	// statistics).
	BulkTimeout time.Duration `koanf:"bulk_timeout"`
	// RateLimit caps outgoing requests per second; 0 disables the limiter.
	RateLimit float64 `koanf:"rate_limit"`
	// RateBurst is the limiter's burst size.
	RateBurst int `koanf:"rate_burst"`
}

// AuthConfig controls credential persistence.
type AuthConfig struct {
	// TokenPath is where the bearer token is persisted.
	TokenPath string `koanf:"token_path"`
	// SnapshotPath is where the identity snapshot is persisted between
	// restarts. Empty disables the snapshot.
	SnapshotPath string `koanf:"snapshot_path"`
	// Username and Password, when both set, log the mirror in at startup
	// if no persisted credential works.
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// SyncConfig tunes the entity cache.
type SyncConfig struct {
	// Retention is how long entries may linger before the janitor evicts
	// them.
	Retention time.Duration `koanf:"retention"`
	// JanitorInterval is how often the janitor sweeps.
	JanitorInterval time.Duration `koanf:"janitor_interval"`
}

// AuditConfig tunes the audit log mirror.
type AuditConfig struct {
	// Enabled turns the audit stream and merger on.
	Enabled bool `koanf:"enabled"`
	// RefreshInterval drives the periodic snapshot refresh.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	// PageSize is how many entries each snapshot refresh requests.
	PageSize int `koanf:"page_size"`
}

// StatusConfig configures the local operator API.
type StatusConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	// RateLimit caps requests per client per minute.
	RateLimit int `koanf:"rate_limit"`
	// CORSOrigins lists allowed origins for browser tooling.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before the config
// file and environment overrides.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL:         "http://127.0.0.1:8000/api",
			Timeout:     30 * time.Second,
			BulkTimeout: 60 * time.Second,
			RateLimit:   20,
			RateBurst:   40,
		},
		Auth: AuthConfig{
			TokenPath:    "/data/deskmirror/token",
			SnapshotPath: "/data/deskmirror/identity.json",
		},
		Sync: SyncConfig{
			Retention:       30 * time.Minute,
			JanitorInterval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:         true,
			RefreshInterval: 30 * time.Second,
			PageSize:        100,
		},
		Status: StatusConfig{
			Enabled:     true,
			Host:        "127.0.0.1",
			Port:        8753,
			RateLimit:   120,
			CORSOrigins: []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("gateway.url: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("gateway.url: missing host")
	}

	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive, got %s", c.Gateway.Timeout)
	}
	if c.Gateway.BulkTimeout < c.Gateway.Timeout {
		return fmt.Errorf("gateway.bulk_timeout (%s) must not be shorter than gateway.timeout (%s)",
			c.Gateway.BulkTimeout, c.Gateway.Timeout)
	}
	if c.Gateway.RateLimit < 0 {
		return fmt.Errorf("gateway.rate_limit must not be negative, got %f", c.Gateway.RateLimit)
	}

	if strings.TrimSpace(c.Auth.TokenPath) == "" {
		return fmt.Errorf("auth.token_path must not be empty")
	}
	if (c.Auth.Username == "") != (c.Auth.Password == "") {
		return fmt.Errorf("auth.username and auth.password must be set together")
	}

	if c.Sync.Retention <= 0 {
		return fmt.Errorf("sync.retention must be positive, got %s", c.Sync.Retention)
	}
	if c.Sync.JanitorInterval <= 0 {
		return fmt.Errorf("sync.janitor_interval must be positive, got %s", c.Sync.JanitorInterval)
	}

	if c.Audit.Enabled {
		if c.Audit.RefreshInterval < time.Second {
			return fmt.Errorf("audit.refresh_interval must be at least 1s, got %s", c.Audit.RefreshInterval)
		}
		if c.Audit.PageSize <= 0 || c.Audit.PageSize > 1000 {
			return fmt.Errorf("audit.page_size must be in 1..1000, got %d", c.Audit.PageSize)
		}
	}

	if c.Status.Enabled {
		if c.Status.Port <= 0 || c.Status.Port > 65535 {
			return fmt.Errorf("status.port must be in 1..65535, got %d", c.Status.Port)
		}
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}
