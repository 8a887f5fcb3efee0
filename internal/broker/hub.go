// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package broker owns room membership and message fan-out for the two
// realtime namespaces (chat, logs). Producers never talk to consumers
// directly; everything flows through the Hub.
//
// The Hub is an explicitly constructed component passed by reference to
// every consumer; there is no package-level instance to fetch and no
// "not initialized" failure mode.
package broker

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dhanush6701/kubepulse/internal/logging"
	"github.com/dhanush6701/kubepulse/internal/metrics"
	"github.com/dhanush6701/kubepulse/internal/models"
)

// MessageStore is the document store surface the broker persists through.
// Satisfied by *store.Store.
type MessageStore interface {
	// FindRecent returns up to limit messages for a room, newest first.
	FindRecent(ctx context.Context, room string, limit int) ([]models.Message, error)
	// Insert persists a message, assigning id and server timestamp.
	Insert(ctx context.Context, msg models.Message) (models.Message, error)
}

// Options configures a Hub.
type Options struct {
	// HistoryLimit is the maximum number of messages delivered on join.
	HistoryLimit int
	// DefaultRoom is used when a chat publish names no room.
	DefaultRoom string
}

// Hub maintains rooms and fans events out to their members.
type Hub struct {
	store      MessageStore
	opts       Options
	instanceID string

	mu            sync.RWMutex
	rooms         map[string]map[*Client]struct{}
	members       map[*Client]map[string]struct{}
	fabric        Fabric
	fabricChannel string

	broadcast  chan Event
	Register   chan *Client
	Unregister chan *Client

	// roomEmpty is invoked (outside the lock) when the last member leaves
	// a log room, so the relay manager can tear down the upstream read.
	roomEmptyMu sync.RWMutex
	roomEmpty   func(room string)
}

// NewHub creates a Hub. The store may only be used after the dependency
// connector has reported it ready; main wires that ordering.
func NewHub(store MessageStore, opts Options) *Hub {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = "general"
	}
	return &Hub{
		store:      store,
		opts:       opts,
		instanceID: uuid.NewString(),
		rooms:      make(map[string]map[*Client]struct{}),
		members:    make(map[*Client]map[string]struct{}),
		broadcast:  make(chan Event, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// SetRoomEmptyFunc installs the last-member-left hook. Must be called
// before clients connect.
func (h *Hub) SetRoomEmptyFunc(fn func(room string)) {
	h.roomEmptyMu.Lock()
	h.roomEmpty = fn
	h.roomEmptyMu.Unlock()
}

// Run processes client lifecycle and fan-out until the context is
// canceled. Designed for suture supervision; returns ctx.Err() on normal
// shutdown after closing all clients.
//
// Lifecycle events take priority over broadcasts so membership is always
// settled before an event fans out.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case evt := <-h.broadcast:
			h.deliver(evt)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.members[c] = make(map[string]struct{})
	total := len(h.members)
	h.mu.Unlock()

	metrics.WebSocketConnections.WithLabelValues(c.namespace).Inc()
	logging.Info().Str("namespace", c.namespace).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	joined, ok := h.members[c]
	var emptied []string
	if ok {
		for room := range joined {
			emptied = append(emptied, h.removeMemberLocked(c, room)...)
		}
		delete(h.members, c)
		c.closeSend()
	}
	total := len(h.members)
	h.mu.Unlock()

	if ok {
		metrics.WebSocketConnections.WithLabelValues(c.namespace).Dec()
		logging.Info().Str("namespace", c.namespace).Int("total_clients", total).Msg("websocket client disconnected")
		h.notifyEmpty(emptied)
	}
}

// removeMemberLocked detaches a client from one room and returns the room
// name if it became an empty log room. Caller holds h.mu.
func (h *Hub) removeMemberLocked(c *Client, room string) []string {
	set, ok := h.rooms[room]
	if !ok {
		return nil
	}
	delete(set, c)
	if len(set) > 0 {
		return nil
	}
	delete(h.rooms, room)
	if strings.HasPrefix(room, LogRoomPrefix) {
		return []string{room}
	}
	return nil
}

// notifyEmpty fires the room-empty hook outside the lock.
func (h *Hub) notifyEmpty(rooms []string) {
	if len(rooms) == 0 {
		return
	}
	h.roomEmptyMu.RLock()
	fn := h.roomEmpty
	h.roomEmptyMu.RUnlock()
	if fn == nil {
		return
	}
	for _, room := range rooms {
		fn(room)
	}
}

// Join adds a connection to a room, creating the room implicitly.
// Idempotent: joining twice has no additional effect. For chat rooms the
// most recent persisted messages are delivered, oldest first, to the
// joining connection only.
func (h *Hub) Join(ctx context.Context, c *Client, room string) {
	if room == "" {
		return
	}

	h.mu.Lock()
	joined, ok := h.members[c]
	if !ok {
		// Not registered (already torn down); nothing to join.
		h.mu.Unlock()
		return
	}
	if _, already := joined[room]; already {
		h.mu.Unlock()
		return
	}
	joined[room] = struct{}{}
	set, ok := h.rooms[room]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[room] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	logging.Debug().Str("room", room).Uint64("client", c.id).Msg("client joined room")

	if c.namespace == NamespaceChat {
		h.sendHistory(ctx, c, room)
	}
}

// sendHistory delivers the recent message backlog to one client.
func (h *Hub) sendHistory(ctx context.Context, c *Client, room string) {
	msgs, err := h.store.FindRecent(ctx, room, h.opts.HistoryLimit)
	if err != nil {
		logging.Error().Err(err).Str("room", room).Msg("failed to fetch room history")
		return
	}
	// Store returns newest first; clients render oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	if !c.enqueue(Event{Type: EventHistory, Room: room, Data: msgs}) {
		logging.Warn().Str("room", room).Uint64("client", c.id).Msg("client gone or queue full, dropping history")
	}
}

// Leave removes a connection from a room. Idempotent; no error if the
// connection was never a member.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	var emptied []string
	if joined, ok := h.members[c]; ok {
		if _, member := joined[room]; member {
			delete(joined, room)
			emptied = h.removeMemberLocked(c, room)
		}
	}
	h.mu.Unlock()

	h.notifyEmpty(emptied)
}

// PublishChat persists a message and broadcasts the persisted form,
// including the generated id and server timestamp, to every member of the
// room, the publisher included. If persistence fails the event is dropped
// and logged; live delivery continuity is never traded for an error the
// publisher cannot act on.
func (h *Hub) PublishChat(ctx context.Context, c *Client, room, text string) {
	if room == "" {
		room = h.opts.DefaultRoom
	}

	msg := models.Message{
		AuthorID:   c.userID,
		AuthorName: c.username,
		Text:       text,
		Room:       room,
	}

	persisted, err := h.store.Insert(ctx, msg)
	if err != nil {
		logging.Error().Err(err).Str("room", room).Msg("failed to persist message, dropping")
		return
	}

	h.publish(Event{Type: EventMessage, Room: room, Data: persisted})
}

// RelayLogLine broadcasts one log line into a log room. Broadcast-only;
// log rooms have no persistence.
func (h *Hub) RelayLogLine(room, line string) {
	h.publish(Event{Type: EventLogLine, Room: room, Data: line})
}

// RelayLogEnd signals end-of-stream to a log room.
func (h *Hub) RelayLogEnd(room string) {
	h.publish(Event{Type: EventLogEnd, Room: room, Data: "stream ended"})
}

// RelayLogError signals an upstream failure to a log room.
func (h *Hub) RelayLogError(room, message string) {
	h.publish(Event{Type: EventLogError, Room: room, Data: message})
}

// publish queues an event for local fan-out and mirrors it to the fabric
// when one is attached. Events from the same producer keep their order:
// the broadcast queue is FIFO and fan-out is single-threaded in Run.
func (h *Hub) publish(evt Event) {
	h.enqueueLocal(evt)

	h.mu.RLock()
	fabric := h.fabric
	h.mu.RUnlock()
	if fabric != nil {
		h.publishFabric(fabric, evt)
	}
}

// enqueueLocal puts an event on the local broadcast queue without
// blocking the producer. A full queue drops the event; delivery here is
// best-effort by design of the realtime channel.
func (h *Hub) enqueueLocal(evt Event) {
	select {
	case h.broadcast <- evt:
		metrics.BroadcastsTotal.WithLabelValues(evt.Type).Inc()
	default:
		metrics.BroadcastsDropped.Inc()
		logging.Warn().Str("type", evt.Type).Str("room", evt.Room).Msg("broadcast queue full, dropping event")
	}
}

// deliver fans one event out to the current members of its room. Clients
// are visited in id order so delivery is deterministic; a client whose
// send queue is full is disconnected rather than allowed to stall the
// room.
func (h *Hub) deliver(evt Event) {
	h.mu.Lock()

	set, ok := h.rooms[evt.Room]
	if !ok {
		h.mu.Unlock()
		return
	}

	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var toRemove []*Client
	for _, c := range clients {
		if !c.enqueue(evt) {
			toRemove = append(toRemove, c)
		}
	}

	var emptied []string
	for _, c := range toRemove {
		if joined, ok := h.members[c]; ok {
			for room := range joined {
				emptied = append(emptied, h.removeMemberLocked(c, room)...)
			}
			delete(h.members, c)
			c.closeSend()
			metrics.WebSocketConnections.WithLabelValues(c.namespace).Dec()
			logging.Warn().Uint64("client", c.id).Msg("client send queue full, disconnecting")
		}
	}
	h.mu.Unlock()

	h.notifyEmpty(emptied)
}

// shutdown closes every client during graceful stop.
func (h *Hub) shutdown() {
	h.mu.Lock()
	count := len(h.members)
	for c := range h.members {
		c.closeSend()
		delete(h.members, c)
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	logging.Info().Str("component", "broker-hub").Int("clients_closed", count).Msg("hub stopped")
}

// RoomSize returns the current membership count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}
