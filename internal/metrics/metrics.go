// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package metrics provides Prometheus instrumentation for KubePulse:
// API latency and throughput, websocket connection and broadcast volume,
// scaling fallback outcomes, log relay lifecycle and dependency retries.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubepulse_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kubepulse_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket / broker metrics
	WebSocketConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kubepulse_websocket_connections",
			Help: "Current number of connected websocket clients",
		},
		[]string{"namespace"}, // "chat" or "logs"
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubepulse_broadcasts_total",
			Help: "Total number of events fanned out to rooms",
		},
		[]string{"type"},
	)

	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubepulse_broadcasts_dropped_total",
			Help: "Events dropped because the broadcast queue was full",
		},
	)

	FabricPublishesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubepulse_fabric_publishes_total",
			Help: "Events published to the pub/sub fabric",
		},
	)

	// Scaling fallback metrics
	ScaleAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubepulse_scale_attempts_total",
			Help: "Scaling strategy attempts by outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: success, retryable, fatal
	)

	// Log relay metrics
	RelaysActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kubepulse_log_relays_active",
			Help: "Currently active log stream relays",
		},
	)

	RelayLinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kubepulse_log_relay_lines_total",
			Help: "Log lines relayed into log rooms",
		},
	)

	// Dependency connector metrics
	DependencyRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubepulse_dependency_retries_total",
			Help: "Connection attempts that failed and were retried",
		},
		[]string{"dependency"},
	)

	DependencyConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kubepulse_dependency_connected",
			Help: "Whether a dependency is currently connected (1) or not (0)",
		},
		[]string{"dependency"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordScaleAttempt records one scaling strategy attempt.
func RecordScaleAttempt(strategy, outcome string) {
	ScaleAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
}
