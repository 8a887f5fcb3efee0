// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package api

import (
	"fmt"
	"net/http"

	"github.com/dhanush6701/kubepulse/internal/logging"
)

// StreamLogs activates the log relay for a pod. The HTTP request only
// triggers the relay; log lines flow through the logs websocket room, not
// this response. Starting an already-running relay is a no-op.
func (h *Handlers) StreamLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ns := query.Get("ns")
	pod := query.Get("pod")
	container := query.Get("container")

	if ns == "" || pod == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMETER",
			"Missing ns or pod", nil)
		return
	}

	room, started := h.relays.Start(ns, pod, container)
	if started {
		logging.Info().
			Str("namespace", sanitizeLogValue(ns)).
			Str("pod", sanitizeLogValue(pod)).
			Str("room", sanitizeLogValue(room)).
			Msg("Log relay started")
	}

	respondData(w, http.StatusAccepted, map[string]any{
		"message": fmt.Sprintf("Streaming logs to room %s", room),
		"room":    room,
		"started": started,
	})
}
