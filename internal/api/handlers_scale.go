// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dhanush6701/kubepulse/internal/cluster"
	"github.com/dhanush6701/kubepulse/internal/logging"
	"github.com/dhanush6701/kubepulse/internal/scaling"
)

// ScaleRequest is the body for POST /api/v1/k8s/scale.
type ScaleRequest struct {
	Deployment string `json:"deployment" validate:"required,max=253"`
	Namespace  string `json:"ns" validate:"required,max=63"`
	Replicas   int32  `json:"replicas" validate:"min=0,max=1000"`
}

// scaleResponse reports the outcome of a scaling sequence.
type scaleResponse struct {
	Message  string            `json:"message"`
	Strategy string            `json:"strategy"`
	Attempts []scaling.Attempt `json:"attempts"`
}

// Scale sets a deployment's replica count through the fallback sequence.
// The sequence runs detached from the request context so a client
// disconnect mid-sequence cannot leave the workload half-mutated between
// strategies.
func (h *Handlers) Scale(w http.ResponseWriter, r *http.Request) {
	var req ScaleRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	result, err := h.engine.Scale(ctx, scaling.Request{
		Workload:  req.Deployment,
		Namespace: req.Namespace,
		Replicas:  req.Replicas,
	})
	if err != nil {
		respondScaleError(w, err)
		return
	}

	logging.Info().
		Str("deployment", sanitizeLogValue(req.Deployment)).
		Str("namespace", sanitizeLogValue(req.Namespace)).
		Int32("replicas", result.Replicas).
		Str("strategy", result.Strategy).
		Msg("Workload scaled")

	respondData(w, http.StatusOK, scaleResponse{
		Message:  fmt.Sprintf("Scaled %s to %d replicas", req.Deployment, result.Replicas),
		Strategy: result.Strategy,
		Attempts: result.Attempts,
	})
}

// respondScaleError maps scaling failures: exhausted fallbacks become a
// conflict, fatal upstream errors keep their status code.
func respondScaleError(w http.ResponseWriter, err error) {
	if errors.Is(err, scaling.ErrNotPermitted) {
		respondError(w, http.StatusConflict, "SCALE_NOT_PERMITTED",
			"unable to scale workload: mutation not permitted in this environment", err)
		return
	}
	if code := cluster.StatusCode(err); code != 0 {
		respondError(w, code, "CLUSTER_ERROR", "Kubernetes API Error", err)
		return
	}
	respondError(w, http.StatusBadGateway, "CLUSTER_UNAVAILABLE",
		"cluster API is unreachable", err)
}
