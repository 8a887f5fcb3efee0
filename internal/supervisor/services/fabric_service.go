// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package services

import (
	"context"
	"fmt"

	"github.com/dhanush6701/kubepulse/internal/broker"
	"github.com/dhanush6701/kubepulse/internal/config"
	"github.com/dhanush6701/kubepulse/internal/connector"
)

// FabricService attaches the NATS fabric to the broadcast hub. The fabric
// is a soft prerequisite: this service retries in the background forever
// while the hub keeps broadcasting instance-locally.
type FabricService struct {
	cfg    config.NATSConfig
	hub    *broker.Hub
	handle *connector.Handle
	conn   *connector.Connector
}

// NewFabricService creates the service. The handle records fabric
// connection state for health reporting.
func NewFabricService(cfg config.NATSConfig, hub *broker.Hub, handle *connector.Handle) *FabricService {
	return &FabricService{
		cfg:    cfg,
		hub:    hub,
		handle: handle,
		conn:   connector.New(),
	}
}

// Serve implements suture.Service. It dials under backoff, attaches the
// fabric to the hub, then holds the connection until shutdown. A failed
// attach returns an error so the supervisor restarts the sequence.
func (s *FabricService) Serve(ctx context.Context) error {
	var fabric *broker.NATSFabric

	backoff := connector.Backoff{Base: s.cfg.RetryBase, Cap: s.cfg.RetryCap}
	err := s.conn.ConnectWithRetry(ctx, s.handle, backoff, func(ctx context.Context) error {
		f, err := broker.DialNATS(s.cfg.URL)
		if err != nil {
			return err
		}
		fabric = f
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.hub.AttachFabric(fabric, s.cfg.Channel); err != nil {
		fabric.Close()
		s.handle.MarkDisconnected()
		return fmt.Errorf("attach fabric: %w", err)
	}

	<-ctx.Done()
	s.hub.DetachFabric()
	fabric.Close()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (s *FabricService) String() string {
	return "nats-fabric"
}
