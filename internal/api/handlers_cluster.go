// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dhanush6701/kubepulse/internal/cluster"
	"github.com/dhanush6701/kubepulse/internal/logging"
)

// Namespaces lists namespace names.
func (h *Handlers) Namespaces(w http.ResponseWriter, r *http.Request) {
	namespaces, err := h.cluster.ListNamespaces(r.Context())
	if err != nil {
		respondClusterError(w, err)
		return
	}
	respondData(w, http.StatusOK, namespaces)
}

// Pods lists pod view models for a namespace.
func (h *Handlers) Pods(w http.ResponseWriter, r *http.Request) {
	pods, err := h.cluster.ListPods(r.Context(), namespaceParam(r))
	if err != nil {
		respondClusterError(w, err)
		return
	}
	respondData(w, http.StatusOK, pods)
}

// Deployments lists deployment view models for a namespace.
func (h *Handlers) Deployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := h.cluster.ListDeployments(r.Context(), namespaceParam(r))
	if err != nil {
		respondClusterError(w, err)
		return
	}
	respondData(w, http.StatusOK, deployments)
}

// Events lists cluster events for a namespace.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.cluster.ListEvents(r.Context(), namespaceParam(r))
	if err != nil {
		respondClusterError(w, err)
		return
	}
	respondData(w, http.StatusOK, events)
}

// PodMetrics lists per-pod resource usage. A missing or failing metrics
// server degrades to an empty list so the dashboard keeps rendering.
func (h *Handlers) PodMetrics(w http.ResponseWriter, r *http.Request) {
	ns := namespaceParam(r)
	metrics, err := h.cluster.ListPodMetrics(r.Context(), ns)
	if err != nil {
		logging.Warn().
			Str("namespace", sanitizeLogValue(ns)).
			Err(err).
			Msg("Metrics API failed, returning empty list")
		respondData(w, http.StatusOK, []struct{}{})
		return
	}
	respondData(w, http.StatusOK, metrics)
}

// RestartPod deletes a pod so its controller recreates it.
func (h *Handlers) RestartPod(w http.ResponseWriter, r *http.Request) {
	pod := chi.URLParam(r, "pod")
	ns := namespaceParam(r)

	if err := h.cluster.DeletePod(r.Context(), pod, ns, false); err != nil {
		respondClusterError(w, err)
		return
	}

	logging.Info().
		Str("pod", sanitizeLogValue(pod)).
		Str("namespace", sanitizeLogValue(ns)).
		Msg("Pod restart initiated")
	respondData(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Pod %s deleted (restart initiated)", pod),
	})
}

// DeletePod removes a pod with foreground propagation.
func (h *Handlers) DeletePod(w http.ResponseWriter, r *http.Request) {
	pod := chi.URLParam(r, "pod")
	ns := namespaceParam(r)

	if err := h.cluster.DeletePod(r.Context(), pod, ns, true); err != nil {
		respondClusterError(w, err)
		return
	}

	logging.Info().
		Str("pod", sanitizeLogValue(pod)).
		Str("namespace", sanitizeLogValue(ns)).
		Msg("Pod deleted")
	respondData(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Pod %s deleted", pod),
	})
}

// respondClusterError maps a cluster API failure to the response envelope,
// preserving the upstream status code when one exists.
func respondClusterError(w http.ResponseWriter, err error) {
	code := cluster.StatusCode(err)
	if code == 0 {
		respondError(w, http.StatusBadGateway, "CLUSTER_UNAVAILABLE",
			"cluster API is unreachable", err)
		return
	}
	respondError(w, code, "CLUSTER_ERROR", "Kubernetes API Error", err)
}
