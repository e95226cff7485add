// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package metrics provides Prometheus instrumentation for the mirror:
// gateway request volume and latency, cache effectiveness, synchronization
// failures, push-channel health and circuit breaker state. Metrics are
// exposed on the local status API at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway transport metrics

	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmirror_gateway_requests_total",
			Help: "Total requests sent to the helpdesk gateway",
		},
		[]string{"method", "endpoint", "status"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deskmirror_gateway_request_duration_seconds",
			Help:    "Gateway request latency in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	GatewayUnauthorizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmirror_gateway_unauthorized_total",
			Help: "Total 401 responses that triggered a credential purge",
		},
	)

	// Entity cache metrics

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmirror_cache_hits_total",
			Help: "Cache hits by entity",
		},
		[]string{"entity"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmirror_cache_misses_total",
			Help: "Cache misses by entity",
		},
		[]string{"entity"},
	)

	CacheStaleServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmirror_cache_stale_served_total",
			Help: "Stale entries served while a revalidation was pending",
		},
		[]string{"entity"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmirror_cache_invalidations_total",
			Help: "Coarse invalidations by entity",
		},
		[]string{"entity"},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskmirror_cache_entries",
			Help: "Current number of cached collections",
		},
	)

	// Synchronization metrics

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmirror_sync_errors_total",
			Help: "Failed list/mutation operations by entity",
		},
		[]string{"entity"},
	)

	OptimisticRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmirror_optimistic_rollbacks_total",
			Help: "Optimistic cache mutations rolled back after a failure",
		},
	)

	StaleResponsesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmirror_stale_responses_dropped_total",
			Help: "List responses discarded by the request-generation guard",
		},
	)

	// Push channel metrics

	StreamConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskmirror_stream_connected",
			Help: "Whether the audit push channel is connected (1) or not (0)",
		},
	)

	StreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmirror_stream_reconnects_total",
			Help: "Reconnection attempts on the audit push channel",
		},
	)

	StreamEventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmirror_stream_events_total",
			Help: "Audit events received over the push channel",
		},
	)

	StreamEventsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskmirror_stream_events_merged_total",
			Help: "Push events that passed the active filters and were merged",
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deskmirror_circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskmirror_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
