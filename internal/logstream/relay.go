// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package logstream bridges pull-based pod log streams into push-based
// room broadcasts.
//
// Each relay is a cancellable task keyed by its room. A second start
// request for an active room is acknowledged without opening another
// upstream read, and when the last member leaves a log room the broker's
// room-empty hook tears the relay down, so upstream reads never outlive
// their audience.
package logstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dhanush6701/kubepulse/internal/broker"
	"github.com/dhanush6701/kubepulse/internal/logging"
	"github.com/dhanush6701/kubepulse/internal/metrics"
)

// maxLineSize bounds a single log line; longer lines are split by the
// scanner rather than failing the stream.
const maxLineSize = 1 << 20

// LogSource opens follow-mode log reads. Satisfied by cluster.Client.
type LogSource interface {
	FollowLogs(ctx context.Context, namespace, pod, container string, tailLines int64) (io.ReadCloser, error)
}

// Broadcaster receives relayed events. Satisfied by *broker.Hub.
type Broadcaster interface {
	RelayLogLine(room, line string)
	RelayLogEnd(room string)
	RelayLogError(room, message string)
}

// RoomName builds the composite log room key for a pod.
func RoomName(namespace, pod string) string {
	return fmt.Sprintf("%s%s:%s", broker.LogRoomPrefix, namespace, pod)
}

// Manager owns all active relays.
type Manager struct {
	source LogSource
	sink   Broadcaster
	tail   int64

	mu     sync.Mutex
	ctx    context.Context
	relays map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager. tail is the backlog requested when a
// relay starts.
func NewManager(source LogSource, sink Broadcaster, tail int64) *Manager {
	if tail <= 0 {
		tail = 100
	}
	return &Manager{
		source: source,
		sink:   sink,
		tail:   tail,
		ctx:    context.Background(),
		relays: make(map[string]context.CancelFunc),
	}
}

// Serve implements suture.Service: it parents all relays to ctx and stops
// them when the supervisor shuts the manager down.
func (m *Manager) Serve(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	<-ctx.Done()
	m.StopAll()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (m *Manager) String() string {
	return "logstream-manager"
}

// Start begins relaying a pod's logs into its room and returns
// immediately. The boolean reports whether a new relay was opened; false
// means one was already active for the room.
func (m *Manager) Start(namespace, pod, container string) (string, bool) {
	room := RoomName(namespace, pod)

	m.mu.Lock()
	if _, active := m.relays[room]; active {
		m.mu.Unlock()
		logging.Debug().Str("room", room).Msg("relay already active, reusing")
		return room, false
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.relays[room] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	metrics.RelaysActive.Inc()
	logging.Info().
		Str("namespace", namespace).
		Str("pod", pod).
		Str("container", container).
		Str("room", room).
		Msg("starting log relay")

	go m.run(ctx, room, namespace, pod, container)
	return room, true
}

// Stop cancels the relay for a room, if any. Called by the broker's
// room-empty hook and safe to call for rooms with no relay.
func (m *Manager) Stop(room string) {
	m.mu.Lock()
	cancel, ok := m.relays[room]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every relay and waits for them to finish.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for _, cancel := range m.relays {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Active returns the number of running relays.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.relays)
}

// run is the relay task: open the follow stream, forward each line, then
// signal exactly one terminal event. Cancellation emits no event; the
// room is already empty or the process is shutting down.
func (m *Manager) run(ctx context.Context, room, namespace, pod, container string) {
	defer m.cleanup(room)

	stream, err := m.source.FollowLogs(ctx, namespace, pod, container, m.tail)
	if err != nil {
		if ctx.Err() != nil {
			logging.Info().Str("room", room).Msg("log relay canceled")
			return
		}
		logging.Error().Err(err).Str("room", room).Msg("failed to open log stream")
		m.sink.RelayLogError(room, err.Error())
		return
	}
	defer stream.Close()

	// Closing the stream when ctx cancels unblocks a pending Read.
	go func() {
		<-ctx.Done()
		_ = stream.Close()
	}()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		m.sink.RelayLogLine(room, scanner.Text())
		metrics.RelayLinesTotal.Inc()
	}

	if ctx.Err() != nil {
		logging.Info().Str("room", room).Msg("log relay canceled")
		return
	}
	if err := scanner.Err(); err != nil {
		logging.Error().Err(err).Str("room", room).Msg("log stream failed")
		m.sink.RelayLogError(room, err.Error())
		return
	}

	logging.Info().Str("room", room).Msg("log stream ended")
	m.sink.RelayLogEnd(room)
}

// cleanup releases the relay's bookkeeping.
func (m *Manager) cleanup(room string) {
	m.mu.Lock()
	if cancel, ok := m.relays[room]; ok {
		cancel()
		delete(m.relays, room)
	}
	m.mu.Unlock()

	metrics.RelaysActive.Dec()
	m.wg.Done()
}
