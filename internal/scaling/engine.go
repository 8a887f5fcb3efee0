// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package scaling changes a workload's desired replica count without
// knowing, a priori, which cluster API mutation mechanism the target
// environment permits.
//
// Strategies are attempted strictly in order; never concurrently, because
// an earlier partial success must not be contradicted by a racing later
// attempt. A 403, 404 or 415 from one mechanism advances to the next; any
// other failure aborts the whole sequence and is surfaced to the caller.
package scaling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	autoscalingv1 "k8s.io/api/autoscaling/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/dhanush6701/kubepulse/internal/cluster"
	"github.com/dhanush6701/kubepulse/internal/logging"
	"github.com/dhanush6701/kubepulse/internal/metrics"
)

// ErrNotPermitted is returned when every strategy has been exhausted.
var ErrNotPermitted = errors.New("unable to scale workload: mutation not permitted in this environment")

// Scaler is the narrow cluster API surface the engine mutates through.
// Satisfied by cluster.Client.
type Scaler interface {
	ReadScale(ctx context.Context, workload, namespace string) (*autoscalingv1.Scale, error)
	ReplaceScale(ctx context.Context, workload, namespace string, scale *autoscalingv1.Scale) error
	PatchScale(ctx context.Context, workload, namespace string, patch []byte, pt types.PatchType) error
	PatchWorkload(ctx context.Context, workload, namespace string, patch []byte, pt types.PatchType) error
}

// Request describes one scaling operation. It exists only for the
// duration of a single fallback sequence.
type Request struct {
	Workload  string
	Namespace string
	Replicas  int32
}

// Attempt records one strategy attempt for diagnostics.
type Attempt struct {
	Strategy   string `json:"strategy"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message,omitempty"`
	Succeeded  bool   `json:"succeeded"`
}

// Result reports which strategy succeeded and everything that was tried.
type Result struct {
	Strategy string    `json:"strategy"`
	Replicas int32     `json:"replicas"`
	Attempts []Attempt `json:"attempts"`
}

// strategy is one entry in the ordered fallback table.
type strategy struct {
	name  string
	apply func(ctx context.Context, s Scaler, req Request) error
}

// strategies is the fallback table, attempted strictly in order.
var strategies = []strategy{
	{name: "replace-scale", apply: applyReplaceScale},
	{name: "json-patch-scale", apply: applyJSONPatchScale},
	{name: "merge-patch-scale", apply: applyMergePatchScale},
	{name: "strategic-patch-workload", apply: applyStrategicPatchWorkload},
}

// Engine runs the ordered fallback sequence.
type Engine struct {
	scaler         Scaler
	attemptTimeout time.Duration
}

// NewEngine creates an Engine. attemptTimeout bounds each individual
// strategy call so a hung API call fails the attempt instead of stalling
// the whole sequence.
func NewEngine(scaler Scaler, attemptTimeout time.Duration) *Engine {
	if attemptTimeout <= 0 {
		attemptTimeout = 15 * time.Second
	}
	return &Engine{scaler: scaler, attemptTimeout: attemptTimeout}
}

// Scale sets the workload's desired replica count, trying each strategy in
// order until one succeeds. Negative replica counts are floored to zero.
//
// The returned Result carries the attempt log even on failure. Errors are
// either ErrNotPermitted (all strategies exhausted on retryable statuses)
// or the first fatal upstream error, wrapped.
func (e *Engine) Scale(ctx context.Context, req Request) (*Result, error) {
	if req.Replicas < 0 {
		req.Replicas = 0
	}

	result := &Result{
		Replicas: req.Replicas,
		Attempts: make([]Attempt, 0, len(strategies)),
	}

	for _, s := range strategies {
		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
		err := s.apply(attemptCtx, e.scaler, req)
		cancel()

		if err == nil {
			result.Strategy = s.name
			result.Attempts = append(result.Attempts, Attempt{Strategy: s.name, Succeeded: true})
			metrics.RecordScaleAttempt(s.name, "success")
			logging.Info().
				Str("workload", req.Workload).
				Str("namespace", req.Namespace).
				Int32("replicas", req.Replicas).
				Str("strategy", s.name).
				Msg("workload scaled")
			return result, nil
		}

		code := cluster.StatusCode(err)
		result.Attempts = append(result.Attempts, Attempt{
			Strategy:   s.name,
			StatusCode: code,
			Message:    err.Error(),
		})

		if !retryable(code) {
			metrics.RecordScaleAttempt(s.name, "fatal")
			logging.Error().
				Err(err).
				Str("workload", req.Workload).
				Str("namespace", req.Namespace).
				Str("strategy", s.name).
				Int("status", code).
				Msg("scaling aborted on fatal cluster error")
			return result, fmt.Errorf("scale %s/%s via %s: %w", req.Namespace, req.Workload, s.name, err)
		}

		metrics.RecordScaleAttempt(s.name, "retryable")
		logging.Warn().
			Str("workload", req.Workload).
			Str("namespace", req.Namespace).
			Str("strategy", s.name).
			Int("status", code).
			Str("reason", err.Error()).
			Msg("scaling strategy not permitted, trying next")
	}

	logging.Error().
		Str("workload", req.Workload).
		Str("namespace", req.Namespace).
		Int("strategies", len(strategies)).
		Msg("all scaling strategies exhausted")
	return result, fmt.Errorf("scale %s/%s: %w", req.Namespace, req.Workload, ErrNotPermitted)
}

// retryable reports whether a status code means "this mechanism is
// unavailable here, try the next one".
func retryable(code int) bool {
	switch code {
	case http.StatusForbidden, http.StatusNotFound, http.StatusUnsupportedMediaType:
		return true
	}
	return false
}

// applyReplaceScale reads the scale subresource and replaces it wholesale.
func applyReplaceScale(ctx context.Context, s Scaler, req Request) error {
	scale, err := s.ReadScale(ctx, req.Workload, req.Namespace)
	if err != nil {
		return err
	}
	scale.Spec.Replicas = req.Replicas
	return s.ReplaceScale(ctx, req.Workload, req.Namespace, scale)
}

// applyJSONPatchScale applies a JSON Patch to the scale subresource.
func applyJSONPatchScale(ctx context.Context, s Scaler, req Request) error {
	patch, err := json.Marshal([]map[string]any{
		{"op": "replace", "path": "/spec/replicas", "value": req.Replicas},
	})
	if err != nil {
		return fmt.Errorf("marshal json patch: %w", err)
	}
	return s.PatchScale(ctx, req.Workload, req.Namespace, patch, types.JSONPatchType)
}

// applyMergePatchScale applies a merge-patch to the scale subresource.
func applyMergePatchScale(ctx context.Context, s Scaler, req Request) error {
	patch, err := replicasPatch(req.Replicas)
	if err != nil {
		return err
	}
	return s.PatchScale(ctx, req.Workload, req.Namespace, patch, types.MergePatchType)
}

// applyStrategicPatchWorkload applies a strategic merge-patch to the
// workload's replica field directly.
func applyStrategicPatchWorkload(ctx context.Context, s Scaler, req Request) error {
	patch, err := replicasPatch(req.Replicas)
	if err != nil {
		return err
	}
	return s.PatchWorkload(ctx, req.Workload, req.Namespace, patch, types.StrategicMergePatchType)
}

// replicasPatch builds the {"spec":{"replicas":N}} body shared by the
// merge and strategic patch strategies.
func replicasPatch(replicas int32) ([]byte, error) {
	patch, err := json.Marshal(map[string]any{
		"spec": map[string]any{"replicas": replicas},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal replicas patch: %w", err)
	}
	return patch, nil
}
