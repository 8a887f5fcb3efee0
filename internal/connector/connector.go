// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package connector owns the connect/retry lifecycle for external stateful
// dependencies (document store, pub/sub fabric).
//
// Every dependency gets a Handle that tracks its connection state and
// exposes a ready signal. Consumers must never act on a disconnected
// handle; they either wait on Ready or fail fast depending on how critical
// the dependency is.
//
// Retry is an explicit iterative loop with exponential backoff
// min(base*2^attempt, cap) and context cancellation, never recursive
// scheduling. Connection-level errors are all treated the same: logged,
// counted and retried. Nothing at this layer is fatal after startup.
package connector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dhanush6701/kubepulse/internal/logging"
	"github.com/dhanush6701/kubepulse/internal/metrics"
)

// State is the connection state of a dependency handle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handle represents one external dependency. It moves
// disconnected -> connecting -> connected, dropping back to disconnected
// on error and looping through connecting again under backoff.
type Handle struct {
	name      string
	state     atomic.Int32
	readyOnce sync.Once
	ready     chan struct{}
}

// NewHandle creates a Handle in the disconnected state.
func NewHandle(name string) *Handle {
	return &Handle{
		name:  name,
		ready: make(chan struct{}),
	}
}

// Name returns the dependency name.
func (h *Handle) Name() string {
	return h.name
}

// State returns the current connection state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Connected reports whether the dependency is currently connected.
func (h *Handle) Connected() bool {
	return h.State() == StateConnected
}

// Ready returns a channel that is closed after the first successful
// connection. It never reopens; consumers that must not observe a
// disconnected handle block on it once at startup.
func (h *Handle) Ready() <-chan struct{} {
	return h.ready
}

// WaitReady blocks until the dependency has connected at least once or the
// context is canceled.
func (h *Handle) WaitReady(ctx context.Context) error {
	select {
	case <-h.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkDisconnected records a connection loss observed by a consumer.
func (h *Handle) MarkDisconnected() {
	h.state.Store(int32(StateDisconnected))
	metrics.DependencyConnected.WithLabelValues(h.name).Set(0)
}

// MarkConnected records a connection observed by a consumer, for example
// a health probe finding the dependency reachable again.
func (h *Handle) MarkConnected() {
	h.state.Store(int32(StateConnected))
	metrics.DependencyConnected.WithLabelValues(h.name).Set(1)
	h.readyOnce.Do(func() { close(h.ready) })
}

func (h *Handle) markConnecting() {
	h.state.Store(int32(StateConnecting))
}

// Backoff computes exponential retry delays.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns min(Base*2^attempt, Cap) for a zero-based attempt count.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Beyond 62 doublings the shift overflows; the cap applies long before.
	if attempt > 62 {
		return b.Cap
	}
	d := b.Base << uint(attempt)
	if d <= 0 || d > b.Cap {
		return b.Cap
	}
	return d
}

// DialFunc attempts one connection to a dependency.
type DialFunc func(ctx context.Context) error

// Pinger is a health-checkable dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// trackedPinger mirrors probe results into a dependency handle.
type trackedPinger struct {
	handle *Handle
	pinger Pinger
}

// TrackPinger wraps a Pinger so that health probes keep the handle's
// state, and with it the connected gauge, current after startup.
func TrackPinger(h *Handle, p Pinger) Pinger {
	return &trackedPinger{handle: h, pinger: p}
}

func (t *trackedPinger) Ping(ctx context.Context) error {
	err := t.pinger.Ping(ctx)
	if err != nil {
		t.handle.MarkDisconnected()
		return err
	}
	t.handle.MarkConnected()
	return nil
}

// Connector runs retry loops for dependency handles.
type Connector struct {
	// sleep waits for the given duration or until ctx is canceled.
	// Overridable in tests to verify the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Connector.
func New() *Connector {
	return &Connector{sleep: sleepContext}
}

// ConnectWithRetry dials until the dependency connects, retrying forever
// with backoff. It never surfaces a dial error; the only way it returns
// non-nil is context cancellation.
func (c *Connector) ConnectWithRetry(ctx context.Context, h *Handle, b Backoff, dial DialFunc) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		h.markConnecting()
		err := dial(ctx)
		if err == nil {
			h.MarkConnected()
			logging.Info().Str("dependency", h.name).Int("attempt", attempt+1).Msg("dependency connected")
			return nil
		}

		h.MarkDisconnected()
		metrics.DependencyRetriesTotal.WithLabelValues(h.name).Inc()
		delay := b.Delay(attempt)
		logging.Warn().
			Err(err).
			Str("dependency", h.name).
			Int("attempt", attempt+1).
			Dur("retry_in", delay).
			Msg("dependency connection failed, retrying")

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// ConnectWithin dials like ConnectWithRetry but gives up after maxAttempts.
// It is used only for the bounded startup phase of hard prerequisites;
// exhausting it means the process should exit non-zero.
func (c *Connector) ConnectWithin(ctx context.Context, h *Handle, b Backoff, maxAttempts int, dial DialFunc) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		h.markConnecting()
		lastErr = dial(ctx)
		if lastErr == nil {
			h.MarkConnected()
			logging.Info().Str("dependency", h.name).Int("attempt", attempt+1).Msg("dependency connected")
			return nil
		}

		h.MarkDisconnected()
		metrics.DependencyRetriesTotal.WithLabelValues(h.name).Inc()
		delay := b.Delay(attempt)
		logging.Warn().
			Err(lastErr).
			Str("dependency", h.name).
			Int("attempt", attempt+1).
			Int("max_attempts", maxAttempts).
			Dur("retry_in", delay).
			Msg("dependency connection failed, retrying")

		// Skip the final sleep; there is no attempt after it.
		if attempt < maxAttempts-1 {
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("dependency %s unreachable after %d attempts: %w", h.name, maxAttempts, lastErr)
}

// sleepContext waits for d or until ctx is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
