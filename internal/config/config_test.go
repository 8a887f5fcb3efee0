// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestDefaultsAreValidWithSecret(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 5000 {
		t.Fatalf("port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Mongo.RetryBase != time.Second || cfg.Mongo.RetryCap != 30*time.Second {
		t.Fatalf("mongo backoff = %s/%s, want 1s/30s", cfg.Mongo.RetryBase, cfg.Mongo.RetryCap)
	}
	if cfg.NATS.RetryCap != 15*time.Second {
		t.Fatalf("nats retry cap = %s, want 15s", cfg.NATS.RetryCap)
	}
	if cfg.Logs.TailLines != 100 {
		t.Fatalf("tail lines = %d, want 100", cfg.Logs.TailLines)
	}
	if cfg.Chat.HistoryLimit != 50 || cfg.Chat.DefaultRoom != "general" {
		t.Fatalf("chat = %+v, want limit 50 room general", cfg.Chat)
	}
	if cfg.Mongo.StartupMaxAttempts != 10 {
		t.Fatalf("startup attempts = %d, want 10", cfg.Mongo.StartupMaxAttempts)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantSub: "server.port",
		},
		{
			name:    "missing mongo uri",
			mutate:  func(c *Config) { c.Mongo.URI = "" },
			wantSub: "mongo.uri",
		},
		{
			name:    "missing mongo database",
			mutate:  func(c *Config) { c.Mongo.Database = "" },
			wantSub: "mongo.database",
		},
		{
			name:    "zero startup attempts",
			mutate:  func(c *Config) { c.Mongo.StartupMaxAttempts = 0 },
			wantSub: "startup_max_attempts",
		},
		{
			name:    "mongo cap below base",
			mutate:  func(c *Config) { c.Mongo.RetryCap = time.Millisecond },
			wantSub: "mongo retry backoff",
		},
		{
			name:    "nats enabled without url",
			mutate:  func(c *Config) { c.NATS.URL = "" },
			wantSub: "nats.url",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "short" },
			wantSub: "jwt_secret",
		},
		{
			name:    "negative tail lines",
			mutate:  func(c *Config) { c.Logs.TailLines = -1 },
			wantSub: "tail_lines",
		},
		{
			name:    "zero history limit",
			mutate:  func(c *Config) { c.Chat.HistoryLimit = 0 },
			wantSub: "history_limit",
		},
		{
			name:    "empty default room",
			mutate:  func(c *Config) { c.Chat.DefaultRoom = "" },
			wantSub: "default_room",
		},
		{
			name:    "zero attempt timeout",
			mutate:  func(c *Config) { c.Scaling.AttemptTimeout = 0 },
			wantSub: "attempt_timeout",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestValidateNATSDisabledSkipsNATSChecks(t *testing.T) {
	cfg := validConfig()
	cfg.NATS.Enabled = false
	cfg.NATS.URL = ""
	cfg.NATS.RetryBase = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 5000}
	if got := cfg.Addr(); got != "127.0.0.1:5000" {
		t.Fatalf("Addr = %q", got)
	}
}

func TestEnvToKey(t *testing.T) {
	tests := map[string]string{
		"KUBEPULSE_SERVER_PORT":                "server.port",
		"KUBEPULSE_MONGO_URI":                  "mongo.uri",
		"KUBEPULSE_MONGO_STARTUP_MAX_ATTEMPTS": "mongo.startup_max_attempts",
		"KUBEPULSE_SECURITY_JWT_SECRET":        "security.jwt_secret",
		"KUBEPULSE_CHAT_DEFAULT_ROOM":          "chat.default_room",
	}
	for in, want := range tests {
		if got := envToKey(in); got != want {
			t.Fatalf("envToKey(%q) = %q, want %q", in, got, want)
		}
	}
}
