// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auction"

// Bid outcome labels.
const (
	BidAccepted = "accepted"
	BidTooLow   = "too_low"
	BidEnded    = "auction_ended"
	BidInvalid  = "invalid"
	BidNotFound = "not_found"
	BidConflict = "conflict"
	BidError    = "error"
)

var (
	DBReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "reconnects_total",
		Help:      "Successful database (re)connections.",
	})

	DBReconnectFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "reconnect_failures_total",
		Help:      "Reconnect cycles that exhausted every attempt.",
	})

	DBStatementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "statement_duration_seconds",
		Help:      "Time spent executing a statement, lock wait excluded.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"statement"})

	Bids = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bids_total",
		Help:      "Bid attempts by outcome.",
	}, []string{"outcome"})

	TokenCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "token_cache_lookups_total",
		Help:      "Token verdict cache lookups by result.",
	}, []string{"result"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
