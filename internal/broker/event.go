// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package broker

// Outbound event types.
const (
	EventHistory  = "history"
	EventMessage  = "message"
	EventLogLine  = "log_line"
	EventLogEnd   = "log_end"
	EventLogError = "log_error"
	EventPong     = "pong"
)

// Inbound event types.
const (
	EventJoinRoom     = "join_room"
	EventSendMessage  = "send_message"
	EventJoinLogRoom  = "join_log_room"
	EventLeaveLogRoom = "leave_log_room"
	EventPing         = "ping"
)

// Event is a single websocket frame, inbound or outbound.
type Event struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Connection namespaces. Chat rooms carry persisted history; log rooms are
// broadcast-only with composite pod:<namespace>:<pod> keys.
const (
	NamespaceChat = "chat"
	NamespaceLogs = "logs"
)

// LogRoomPrefix marks log rooms; the relay manager keys relays by these.
const LogRoomPrefix = "pod:"
