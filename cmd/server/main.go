// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package main is the entry point for the KubePulse server.
//
// KubePulse is a cluster observability dashboard backend: cluster read
// endpoints, a multi-strategy scaling engine, a realtime broadcast broker
// with chat persistence and a pod log relay.
//
// Startup order:
//
//  1. Configuration (Koanf v2: defaults, config file, KUBEPULSE_* env)
//  2. Logging (zerolog)
//  3. Document store: hard prerequisite, bounded connect attempts,
//     exit non-zero on failure
//  4. Cluster API client (in-cluster config, kubeconfig fallback)
//  5. Broadcast hub, log relay manager, scaling engine, assistant
//  6. Supervision tree (suture): messaging layer + API layer
//  7. NATS fabric: soft prerequisite, attached in the background
//
// Shutdown is graceful on SIGINT/SIGTERM: the HTTP server drains, relays
// stop, the fabric detaches and the store disconnects.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhanush6701/kubepulse/internal/api"
	"github.com/dhanush6701/kubepulse/internal/assistant"
	"github.com/dhanush6701/kubepulse/internal/broker"
	"github.com/dhanush6701/kubepulse/internal/cluster"
	"github.com/dhanush6701/kubepulse/internal/config"
	"github.com/dhanush6701/kubepulse/internal/connector"
	"github.com/dhanush6701/kubepulse/internal/logging"
	"github.com/dhanush6701/kubepulse/internal/logstream"
	"github.com/dhanush6701/kubepulse/internal/middleware"
	"github.com/dhanush6701/kubepulse/internal/scaling"
	"github.com/dhanush6701/kubepulse/internal/store"
	"github.com/dhanush6701/kubepulse/internal/supervisor"
	"github.com/dhanush6701/kubepulse/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("mongo_db", cfg.Mongo.Database).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("assistant_configured", cfg.Assistant.APIKey != "").
		Msg("Starting KubePulse")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store is the hard prerequisite. Bounded retries, then exit
	// non-zero so the orchestrator restarts the whole pod.
	messageStore := store.New(cfg.Mongo)
	storeHandle := connector.NewHandle("mongo")
	conn := connector.New()
	err = conn.ConnectWithin(ctx, storeHandle,
		connector.Backoff{Base: cfg.Mongo.RetryBase, Cap: cfg.Mongo.RetryCap},
		cfg.Mongo.StartupMaxAttempts,
		messageStore.Connect,
	)
	if err != nil {
		logging.Error().Err(err).Msg("Document store unreachable, giving up")
		os.Exit(1)
	}
	defer func() {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		if err := messageStore.Disconnect(disconnectCtx); err != nil {
			logging.Error().Err(err).Msg("Error disconnecting document store")
		}
	}()

	clusterClient, err := cluster.New(cfg.Cluster)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build cluster API client")
	}

	auth, err := middleware.NewAuthenticator(cfg.Security.JWTSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token verification")
	}

	hub := broker.NewHub(messageStore, broker.Options{
		HistoryLimit: cfg.Chat.HistoryLimit,
		DefaultRoom:  cfg.Chat.DefaultRoom,
	})

	relays := logstream.NewManager(clusterClient, hub, cfg.Logs.TailLines)

	// When the last member leaves a log room the relay has no audience;
	// tear it down so the cluster API stream closes.
	hub.SetRoomEmptyFunc(func(room string) {
		relays.Stop(room)
	})

	engine := scaling.NewEngine(clusterClient, cfg.Scaling.AttemptTimeout)
	aiAssistant := assistant.New(cfg.Assistant)

	// Health probes report into the store handle so the connected gauge
	// tracks reality after startup, not just the initial connect.
	storePing := connector.TrackPinger(storeHandle, messageStore)

	handlers := api.NewHandlers(cfg, storePing, clusterClient, hub, relays, engine, aiAssistant)
	router := api.NewRouter(cfg, handlers, auth)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(relays)
	if cfg.NATS.Enabled {
		fabricHandle := connector.NewHandle("nats")
		tree.AddMessagingService(services.NewFabricService(cfg.NATS, hub, fabricHandle))
	} else {
		logging.Info().Msg("Pub/sub fabric disabled, broadcasts stay instance-local")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	logging.Info().Msg("KubePulse stopped gracefully")
}
