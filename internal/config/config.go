// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package config loads and validates KubePulse configuration via Koanf v2.
//
// Configuration is layered, highest priority last:
//
//  1. Built-in defaults
//  2. Config file (config.yaml, or KUBEPULSE_CONFIG_PATH)
//  3. Environment variables (KUBEPULSE_ prefix, "_" maps to ".")
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the KubePulse server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Mongo     MongoConfig     `koanf:"mongo"`
	NATS      NATSConfig      `koanf:"nats"`
	Cluster   ClusterConfig   `koanf:"cluster"`
	Security  SecurityConfig  `koanf:"security"`
	Scaling   ScalingConfig   `koanf:"scaling"`
	Logs      LogsConfig      `koanf:"logs"`
	Chat      ChatConfig      `koanf:"chat"`
	Assistant AssistantConfig `koanf:"assistant"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MongoConfig holds document store settings. The document store is the
// hard startup prerequisite: the server will not accept connections until
// it has been reached at least once, and exits non-zero if it cannot be
// reached within StartupMaxAttempts.
type MongoConfig struct {
	URI                string        `koanf:"uri"`
	Database           string        `koanf:"database"`
	StartupMaxAttempts int           `koanf:"startup_max_attempts"`
	RetryBase          time.Duration `koanf:"retry_base"`
	RetryCap           time.Duration `koanf:"retry_cap"`
}

// NATSConfig holds pub/sub fabric settings. The fabric is a soft
// prerequisite: it is attached asynchronously after startup and until then
// broadcasts stay instance-local.
type NATSConfig struct {
	Enabled   bool          `koanf:"enabled"`
	URL       string        `koanf:"url"`
	Channel   string        `koanf:"channel"`
	RetryBase time.Duration `koanf:"retry_base"`
	RetryCap  time.Duration `koanf:"retry_cap"`
}

// ClusterConfig holds cluster API client settings. An empty Kubeconfig
// means in-cluster config first, then the default kubeconfig locations.
type ClusterConfig struct {
	Kubeconfig string `koanf:"kubeconfig"`
}

// SecurityConfig holds token verification settings. Token issuance is
// handled by the identity service; KubePulse only verifies.
type SecurityConfig struct {
	JWTSecret   string   `koanf:"jwt_secret"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// ScalingConfig holds Scaling Fallback Engine settings.
type ScalingConfig struct {
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
}

// LogsConfig holds log relay settings.
type LogsConfig struct {
	TailLines int64 `koanf:"tail_lines"`
}

// ChatConfig holds chat broker settings.
type ChatConfig struct {
	HistoryLimit int    `koanf:"history_limit"`
	DefaultRoom  string `koanf:"default_room"`
}

// AssistantConfig holds the optional AI assistant settings. An empty
// APIKey leaves the assistant in a distinct "not configured" state.
type AssistantConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

// Validate checks the configuration for unusable values. It is called
// once at startup, before any component is constructed.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if c.Mongo.StartupMaxAttempts < 1 {
		return fmt.Errorf("mongo.startup_max_attempts must be at least 1, got %d", c.Mongo.StartupMaxAttempts)
	}
	if c.Mongo.RetryBase <= 0 || c.Mongo.RetryCap < c.Mongo.RetryBase {
		return fmt.Errorf("mongo retry backoff is invalid: base=%s cap=%s", c.Mongo.RetryBase, c.Mongo.RetryCap)
	}
	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return fmt.Errorf("nats.url is required when nats.enabled is true")
		}
		if c.NATS.RetryBase <= 0 || c.NATS.RetryCap < c.NATS.RetryBase {
			return fmt.Errorf("nats retry backoff is invalid: base=%s cap=%s", c.NATS.RetryBase, c.NATS.RetryCap)
		}
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Scaling.AttemptTimeout <= 0 {
		return fmt.Errorf("scaling.attempt_timeout must be positive, got %s", c.Scaling.AttemptTimeout)
	}
	if c.Logs.TailLines < 0 {
		return fmt.Errorf("logs.tail_lines must not be negative, got %d", c.Logs.TailLines)
	}
	if c.Chat.HistoryLimit < 1 {
		return fmt.Errorf("chat.history_limit must be at least 1, got %d", c.Chat.HistoryLimit)
	}
	if c.Chat.DefaultRoom == "" {
		return fmt.Errorf("chat.default_room is required")
	}
	return nil
}
