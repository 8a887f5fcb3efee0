// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package api wires the HTTP surface of KubePulse: cluster read endpoints,
// the scaling endpoint, log stream activation, the assistant and the two
// websocket namespaces. Routing is Chi; every response uses the standard
// envelope from the models package.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dhanush6701/kubepulse/internal/broker"
	"github.com/dhanush6701/kubepulse/internal/cluster"
	"github.com/dhanush6701/kubepulse/internal/config"
	"github.com/dhanush6701/kubepulse/internal/models"
	"github.com/dhanush6701/kubepulse/internal/scaling"
)

// storePinger is the slice of the document store health checks use.
type storePinger interface {
	Ping(ctx context.Context) error
}

// relayStarter is the slice of the log stream manager handlers use.
type relayStarter interface {
	Start(namespace, pod, container string) (string, bool)
	Active() int
}

// scaleRunner is the slice of the scaling engine handlers use.
type scaleRunner interface {
	Scale(ctx context.Context, req scaling.Request) (*scaling.Result, error)
}

// assistantService is the slice of the assistant handlers use.
type assistantService interface {
	Configured() bool
	Chat(ctx context.Context, message string, uiContext map[string]any) (string, error)
}

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	cfg       *config.Config
	store     storePinger
	cluster   cluster.Client
	hub       *broker.Hub
	relays    relayStarter
	engine    scaleRunner
	assistant assistantService
	startTime time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(
	cfg *config.Config,
	store storePinger,
	clusterClient cluster.Client,
	hub *broker.Hub,
	relays relayStarter,
	engine scaleRunner,
	assistant assistantService,
) *Handlers {
	return &Handlers{
		cfg:       cfg,
		store:     store,
		cluster:   clusterClient,
		hub:       hub,
		relays:    relays,
		engine:    engine,
		assistant: assistant,
		startTime: time.Now(),
	}
}

// Health reports service status plus dependency reachability. Dependency
// probes are bounded so a hung backend cannot stall the probe endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := models.HealthStatus{
		Status:         "ok",
		Timestamp:      time.Now().UTC(),
		FabricAttached: h.hub.FabricAttached(),
		Uptime:         time.Since(h.startTime).Seconds(),
	}

	if err := h.store.Ping(ctx); err == nil {
		status.StoreConnected = true
	}
	if err := h.cluster.Reachable(ctx); err == nil {
		status.ClusterReachable = true
	}

	if !status.StoreConnected {
		status.Status = "degraded"
	}

	respondData(w, http.StatusOK, status)
}
