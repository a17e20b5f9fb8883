// Package metrics exposes Prometheus counters for ledger activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LedgerMutations counts persisted ledger-changing operations by op,
	// e.g. add_expense, confirm_settlement or claim_placeholder.
	LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contri",
		Name:      "ledger_mutations_total",
		Help:      "Ledger-changing operations that were persisted.",
	}, []string{"op"})

	// LedgerInconsistencies counts pairs a reversal expected but could not
	// apply: "missing" or "settled".
	LedgerInconsistencies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contri",
		Name:      "ledger_inconsistencies_total",
		Help:      "Reversal deltas skipped because the pair was missing or settled.",
	}, []string{"kind"})

	// CacheRequests counts group view lookups by result (hit, miss, error).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contri",
		Name:      "cache_requests_total",
		Help:      "Group view cache lookups.",
	}, []string{"result"})

	// CacheInvalidationFailures counts invalidations that did not reach the cache.
	CacheInvalidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contri",
		Name:      "cache_invalidation_failures_total",
		Help:      "Cache invalidations that failed after a ledger write.",
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contri",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)
