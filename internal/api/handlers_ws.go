// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhanush6701/kubepulse/internal/broker"
	"github.com/dhanush6701/kubepulse/internal/logging"
	"github.com/dhanush6701/kubepulse/internal/middleware"
)

// ChatSocket upgrades to the chat namespace. Clients land in no room until
// they send join_room; the default room is joined automatically.
func (h *Handlers) ChatSocket(w http.ResponseWriter, r *http.Request) {
	h.serveSocket(w, r, broker.NamespaceChat)
}

// LogsSocket upgrades to the logs namespace. Log rooms carry no history;
// clients receive lines relayed after they join.
func (h *Handlers) LogsSocket(w http.ResponseWriter, r *http.Request) {
	h.serveSocket(w, r, broker.NamespaceLogs)
}

func (h *Handlers) serveSocket(w http.ResponseWriter, r *http.Request, namespace string) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credentials", nil)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := broker.NewClient(h.hub, conn, namespace, claims.UserID(), claims.Username)
	client.Start()

	logging.Debug().
		Str("namespace", namespace).
		Str("user", sanitizeLogValue(claims.Username)).
		Uint64("client_id", client.ID()).
		Msg("WebSocket client connected")
}

// upgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handlers) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkSocketOrigin validates websocket connection origins. Browser
// websockets always carry an Origin header; an empty one is rejected so
// the allow list cannot be bypassed.
func (h *Handlers) checkSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.cfg == nil {
		return true
	}

	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().
		Str("origin", sanitizeLogValue(origin)).
		Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
