// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package services

import (
	"context"
)

// ContextHub matches *broker.Hub's Run method without importing the
// broker package.
type ContextHub interface {
	Run(ctx context.Context) error
}

// HubService wraps the broadcast hub as a supervised service. The hub's
// Run method already follows the suture.Service pattern; this wrapper
// only supplies a stable name for supervisor logging.
type HubService struct {
	hub ContextHub
}

// NewHubService creates the wrapper.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.Run(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *HubService) String() string {
	return "broadcast-hub"
}
