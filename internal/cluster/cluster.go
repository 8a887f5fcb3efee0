// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package cluster abstracts the Kubernetes control plane behind the narrow
// surface the rest of KubePulse consumes. Every call can fail with a
// status code and message; the typed StatusError carries both so callers
// can classify failures without depending on client-go error internals.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"

	autoscalingv1 "k8s.io/api/autoscaling/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/dhanush6701/kubepulse/internal/models"
)

// Client is the cluster API surface KubePulse consumes.
type Client interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	ListPods(ctx context.Context, namespace string) ([]models.Pod, error)
	ListDeployments(ctx context.Context, namespace string) ([]models.Deployment, error)
	ListEvents(ctx context.Context, namespace string) ([]models.ClusterEvent, error)
	ListPodMetrics(ctx context.Context, namespace string) ([]models.PodMetrics, error)

	ReadScale(ctx context.Context, workload, namespace string) (*autoscalingv1.Scale, error)
	ReplaceScale(ctx context.Context, workload, namespace string, scale *autoscalingv1.Scale) error
	PatchScale(ctx context.Context, workload, namespace string, patch []byte, pt types.PatchType) error
	PatchWorkload(ctx context.Context, workload, namespace string, patch []byte, pt types.PatchType) error

	DeletePod(ctx context.Context, name, namespace string, foreground bool) error
	FollowLogs(ctx context.Context, namespace, pod, container string, tailLines int64) (io.ReadCloser, error)

	// Reachable reports whether the control plane answers at all.
	Reachable(ctx context.Context) error
}

// StatusError is a cluster API failure with its upstream HTTP status code.
type StatusError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("cluster api: %s (status %d)", e.Message, e.Code)
}

// StatusCode extracts the upstream status code from an error chain.
// Returns 0 when the error carries no status (transport failure, timeout).
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
