// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package connector

import (
	"context"
	"errors"
	"testing"
	"time"
)

// newTestConnector records sleeps instead of waiting.
func newTestConnector() (*Connector, *[]time.Duration) {
	var sleeps []time.Duration
	c := New()
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return c, &sleeps
}

func TestBackoffDelaySchedule(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: 30 * time.Second}

	wants := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for attempt, want := range wants {
		if got := b.Delay(attempt); got != want {
			t.Fatalf("Delay(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestBackoffDelayNeverOverflows(t *testing.T) {
	b := Backoff{Base: time.Second, Cap: 15 * time.Second}
	for _, attempt := range []int{-1, 0, 63, 100, 1 << 20} {
		got := b.Delay(attempt)
		if got <= 0 || got > b.Cap {
			t.Fatalf("Delay(%d) = %s, out of (0, %s]", attempt, got, b.Cap)
		}
	}
}

func TestConnectWithRetryEventuallyConnects(t *testing.T) {
	c, sleeps := newTestConnector()
	h := NewHandle("mongo")

	failures := 3
	dial := func(context.Context) error {
		if failures > 0 {
			failures--
			return errors.New("connection refused")
		}
		return nil
	}

	err := c.ConnectWithRetry(context.Background(), h,
		Backoff{Base: time.Second, Cap: 30 * time.Second}, dial)
	if err != nil {
		t.Fatalf("ConnectWithRetry returned %v", err)
	}
	if !h.Connected() {
		t.Fatal("handle should be connected")
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Fatalf("sleep %d = %s, want %s", i, (*sleeps)[i], d)
		}
	}

	select {
	case <-h.Ready():
	default:
		t.Fatal("Ready channel should be closed after first connect")
	}
}

func TestConnectWithRetryStopsOnCancel(t *testing.T) {
	c, _ := newTestConnector()
	h := NewHandle("nats")

	ctx, cancel := context.WithCancel(context.Background())
	dials := 0
	dial := func(context.Context) error {
		dials++
		if dials == 2 {
			cancel()
		}
		return errors.New("still down")
	}

	err := c.ConnectWithRetry(ctx, h, Backoff{Base: time.Second, Cap: 15 * time.Second}, dial)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if h.Connected() {
		t.Fatal("handle must not be connected after cancellation")
	}
}

func TestConnectWithinExhaustsAttempts(t *testing.T) {
	c, sleeps := newTestConnector()
	h := NewHandle("mongo")

	dials := 0
	dial := func(context.Context) error {
		dials++
		return errors.New("no route to host")
	}

	err := c.ConnectWithin(context.Background(), h,
		Backoff{Base: time.Second, Cap: 30 * time.Second}, 4, dial)
	if err == nil {
		t.Fatal("ConnectWithin should fail after exhausting attempts")
	}
	if dials != 4 {
		t.Fatalf("dials = %d, want 4", dials)
	}
	// No sleep after the final attempt.
	if len(*sleeps) != 3 {
		t.Fatalf("sleeps = %d, want 3", len(*sleeps))
	}
	if h.Connected() {
		t.Fatal("handle must stay disconnected")
	}
}

func TestConnectWithinSucceedsMidway(t *testing.T) {
	c, _ := newTestConnector()
	h := NewHandle("mongo")

	failures := 2
	dial := func(context.Context) error {
		if failures > 0 {
			failures--
			return errors.New("transient")
		}
		return nil
	}

	err := c.ConnectWithin(context.Background(), h,
		Backoff{Base: time.Second, Cap: 30 * time.Second}, 10, dial)
	if err != nil {
		t.Fatalf("ConnectWithin returned %v", err)
	}
	if !h.Connected() {
		t.Fatal("handle should be connected")
	}
}

func TestHandleStateTransitions(t *testing.T) {
	h := NewHandle("mongo")
	if h.State() != StateDisconnected {
		t.Fatalf("initial state = %s, want disconnected", h.State())
	}

	h.markConnecting()
	if h.State() != StateConnecting {
		t.Fatalf("state = %s, want connecting", h.State())
	}

	h.MarkConnected()
	if !h.Connected() {
		t.Fatalf("state = %s, want connected", h.State())
	}

	h.MarkDisconnected()
	if h.Connected() {
		t.Fatal("handle should report disconnected")
	}

	// Ready stays closed across later disconnects.
	select {
	case <-h.Ready():
	default:
		t.Fatal("Ready must remain closed once connected")
	}
}

func TestWaitReadyHonorsContext(t *testing.T) {
	h := NewHandle("nats")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.WaitReady(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitReady = %v, want context.Canceled", err)
	}

	h.MarkConnected()
	if err := h.WaitReady(context.Background()); err != nil {
		t.Fatalf("WaitReady after connect = %v", err)
	}
}

type scriptedPinger struct{ err error }

func (p *scriptedPinger) Ping(context.Context) error { return p.err }

func TestTrackPingerMirrorsProbeResults(t *testing.T) {
	h := NewHandle("mongo")
	h.MarkConnected()

	p := &scriptedPinger{}
	tracked := TrackPinger(h, p)

	p.err = errors.New("server selection timeout")
	if err := tracked.Ping(context.Background()); err == nil {
		t.Fatal("probe error must propagate to the caller")
	}
	if h.Connected() {
		t.Fatal("handle must drop to disconnected after a failed probe")
	}

	p.err = nil
	if err := tracked.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !h.Connected() {
		t.Fatal("handle must reconnect after a successful probe")
	}
}
