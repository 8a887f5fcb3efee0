// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package models defines the API response envelope, the chat message
// document and the view models the dashboard renders for cluster
// resources. View models carry only the fields the core reads; full
// resource schemas stay with the cluster API.
package models

import "time"

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data,omitempty"`
	Error    *APIError `json:"error,omitempty"`
	Metadata Metadata  `json:"metadata"`
}

// APIError carries a stable machine-readable code plus a human-readable
// message. Internal detail is never exposed here.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata holds response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus reports service health and dependency reachability.
type HealthStatus struct {
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
	StoreConnected   bool      `json:"storeConnected"`
	FabricAttached   bool      `json:"fabricAttached"`
	ClusterReachable bool      `json:"clusterReachable"`
	Uptime           float64   `json:"uptimeSeconds"`
}

// Message is a persisted chat message. Immutable once stored; ID and
// Timestamp are assigned by the document store on insert.
type Message struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	AuthorID   string    `bson:"author_id" json:"authorId"`
	AuthorName string    `bson:"author_name" json:"authorName"`
	Text       string    `bson:"text" json:"text"`
	Room       string    `bson:"room" json:"room"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}

// Pod is the dashboard view of a pod.
type Pod struct {
	Name       string      `json:"name"`
	Namespace  string      `json:"namespace"`
	Status     string      `json:"status"`
	IP         string      `json:"ip,omitempty"`
	Node       string      `json:"node,omitempty"`
	StartTime  *time.Time  `json:"startTime,omitempty"`
	Containers []Container `json:"containers"`
}

// Container is the dashboard view of a container within a pod.
type Container struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Ready bool   `json:"ready"`
}

// Deployment is the dashboard view of a deployment.
type Deployment struct {
	Name              string    `json:"name"`
	Namespace         string    `json:"namespace"`
	Replicas          int32     `json:"replicas"`
	ReadyReplicas     int32     `json:"readyReplicas"`
	AvailableReplicas int32     `json:"availableReplicas"`
	CreatedAt         time.Time `json:"creationTimestamp"`
}

// ClusterEvent is the dashboard view of a cluster event.
type ClusterEvent struct {
	Type          string     `json:"type"`
	Reason        string     `json:"reason"`
	Message       string     `json:"message"`
	Object        string     `json:"object"`
	Count         int32      `json:"count"`
	LastTimestamp *time.Time `json:"lastTimestamp,omitempty"`
}

// PodMetrics is the dashboard view of per-pod resource usage as reported
// by the metrics API group.
type PodMetrics struct {
	Name       string             `json:"name"`
	Namespace  string             `json:"namespace"`
	Containers []ContainerMetrics `json:"containers"`
}

// ContainerMetrics holds raw usage quantities for one container.
type ContainerMetrics struct {
	Name  string            `json:"name"`
	Usage map[string]string `json:"usage"`
}
