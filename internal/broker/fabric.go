// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package broker

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/dhanush6701/kubepulse/internal/logging"
	"github.com/dhanush6701/kubepulse/internal/metrics"
)

// Fabric extends fan-out across service instances. It is an optional
// accelerant: until one is attached, broadcasts are instance-local.
type Fabric interface {
	PublishRaw(channel string, payload []byte) error
	SubscribeRaw(channel string, handler func(payload []byte)) error
	Close()
}

// envelope is the wire form of a cross-instance broadcast. Origin lets a
// subscriber drop its own events so local members never see duplicates.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// AttachFabric connects the hub to a pub/sub fabric. From this point every
// published event is mirrored to the fabric and remote events are fanned
// out locally. Attach once; called by the fabric-attach service after the
// dependency connector reports the fabric reachable.
func (h *Hub) AttachFabric(f Fabric, channel string) error {
	err := f.SubscribeRaw(channel, func(payload []byte) {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logging.Warn().Err(err).Msg("malformed fabric envelope, dropping")
			return
		}
		if env.Origin == h.instanceID {
			return
		}
		// Remote event: local fan-out only, never re-published.
		h.enqueueLocal(env.Event)
	})
	if err != nil {
		return fmt.Errorf("subscribe fabric channel %s: %w", channel, err)
	}

	h.mu.Lock()
	h.fabric = f
	h.fabricChannel = channel
	h.mu.Unlock()

	logging.Info().Str("channel", channel).Msg("pub/sub fabric attached, cross-instance fan-out enabled")
	return nil
}

// DetachFabric returns the hub to instance-local fan-out. Called before
// the fabric connection is closed so publishes stop targeting it.
func (h *Hub) DetachFabric() {
	h.mu.Lock()
	h.fabric = nil
	h.fabricChannel = ""
	h.mu.Unlock()
}

// FabricAttached reports whether cross-instance fan-out is active.
func (h *Hub) FabricAttached() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fabric != nil
}

// publishFabric mirrors one event to the fabric. Failures are logged and
// absorbed; local delivery has already been queued.
func (h *Hub) publishFabric(f Fabric, evt Event) {
	h.mu.RLock()
	channel := h.fabricChannel
	h.mu.RUnlock()

	payload, err := json.Marshal(envelope{Origin: h.instanceID, Event: evt})
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal fabric envelope")
		return
	}
	if err := f.PublishRaw(channel, payload); err != nil {
		logging.Warn().Err(err).Str("channel", channel).Msg("fabric publish failed")
		return
	}
	metrics.FabricPublishesTotal.Inc()
}

// NATSFabric implements Fabric over a NATS connection.
type NATSFabric struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// DialNATS connects to the fabric. The connection keeps itself alive with
// unlimited reconnects once established; the dependency connector owns
// the initial-attach retry schedule.
func DialNATS(url string) (*NATSFabric, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("fabric disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("fabric reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect fabric: %w", err)
	}
	return &NATSFabric{conn: conn}, nil
}

// PublishRaw publishes a payload on a channel.
func (f *NATSFabric) PublishRaw(channel string, payload []byte) error {
	return f.conn.Publish(channel, payload)
}

// SubscribeRaw subscribes a handler to a channel.
func (f *NATSFabric) SubscribeRaw(channel string, handler func(payload []byte)) error {
	sub, err := f.conn.Subscribe(channel, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return err
	}
	f.subs = append(f.subs, sub)
	return nil
}

// Close drains the connection.
func (f *NATSFabric) Close() {
	for _, sub := range f.subs {
		_ = sub.Unsubscribe()
	}
	if err := f.conn.Drain(); err != nil {
		f.conn.Close()
	}
}
