// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics defines the Prometheus metrics of the identity service.
//
// All metrics register with the default registry at init via promauto and are
// exposed on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// # Cache

// Cache result labels.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheDegraded = "degraded"
)

// CacheRequestsTotal counts cache-aside lookups.
// Labels:
//   - key: key family ("user_id", "user_email", "identity")
//   - result: "hit", "miss" or "degraded"
var CacheRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_requests_total",
		Help:      "Total number of cache-aside lookups, by key family and result.",
	},
	[]string{"key", "result"},
)

// CacheDegradedTotal counts cache operations that failed and fell back to the store.
// Label:
//   - operation: "get", "generation", "fill" or "invalidate"
var CacheDegradedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_degraded_total",
		Help:      "Total number of cache operations that failed and were bypassed.",
	},
	[]string{"operation"},
)

// # Authentication

// AuthFailuresTotal counts rejected password logins.
// Label:
//   - reason: "unknown_user", "no_password", "mismatch" or "malformed_hash"
var AuthFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Total number of failed password logins, by internal reason.",
	},
	[]string{"reason"},
)

// # Reconciliation

// ReconcileTotal counts successful external logins.
// Labels:
//   - provider: e.g. "google"
//   - status: "existing", "linked" or "created"
var ReconcileTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_total",
		Help:      "Total number of reconciled external logins, by provider and outcome.",
	},
	[]string{"provider", "status"},
)

// ReconcileConflictsTotal counts uniqueness conflicts hit during reconciliation.
// Labels:
//   - provider: e.g. "google"
//   - outcome: "retried" or "surfaced"
var ReconcileConflictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_conflicts_total",
		Help:      "Total number of insert conflicts during reconciliation.",
	},
	[]string{"provider", "outcome"},
)

// # Worker Pool

// ObserveWorkerPool exposes the in-flight count and size of the store worker pool.
// Call once at startup.
func ObserveWorkerPool(inFlight func() int, size int) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_pool_in_flight",
			Help:      "Number of store and cache calls currently holding a worker slot.",
		},
		func() float64 { return float64(inFlight()) },
	)

	promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_pool_size",
		Help:      "Configured number of worker slots.",
	}).Set(float64(size))
}
