// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/kubepulse/config.yaml",
	"/etc/kubepulse/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "KUBEPULSE_CONFIG_PATH"

// envPrefix is the prefix for environment variable overrides.
const envPrefix = "KUBEPULSE_"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Mongo: MongoConfig{
			URI:                "mongodb://127.0.0.1:27017",
			Database:           "kubepulse",
			StartupMaxAttempts: 10,
			RetryBase:          time.Second,
			RetryCap:           30 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:   true,
			URL:       "nats://127.0.0.1:4222",
			Channel:   "kubepulse.broadcast",
			RetryBase: time.Second,
			RetryCap:  15 * time.Second,
		},
		Cluster: ClusterConfig{
			Kubeconfig: "",
		},
		Security: SecurityConfig{
			JWTSecret:   "",
			CORSOrigins: []string{"*"},
		},
		Scaling: ScalingConfig{
			AttemptTimeout: 15 * time.Second,
		},
		Logs: LogsConfig{
			TailLines: 100,
		},
		Chat: ChatConfig{
			HistoryLimit: 50,
			DefaultRoom:  "general",
		},
		Assistant: AssistantConfig{
			APIKey: "",
			Model:  "gpt-4o-mini",
		},
	}
}

// Load builds the configuration from defaults, an optional config file and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// findConfigFile resolves the config file path. An explicit
// KUBEPULSE_CONFIG_PATH wins over the default search paths.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envToKey maps KUBEPULSE_MONGO_URI to "mongo.uri". Only the first
// underscore becomes a section separator so multi-word keys like
// startup_max_attempts survive the mapping.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}
