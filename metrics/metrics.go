// Package metrics exposes Prometheus collectors for the authentication core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthSucceeded counts successful authentications by strategy
	// (developer, cache, shared, jwt_exchange, headless, popup).
	AuthSucceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_auth_succeeded_total",
			Help: "The total number of successful authentications.",
		},
		[]string{"strategy"},
	)

	// AuthFailed counts terminally failed authentication attempts by strategy.
	AuthFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_auth_failed_total",
			Help: "The total number of failed authentication attempts.",
		},
		[]string{"strategy"},
	)

	// FlowDuration observes how long an interactive flow ran before reaching
	// its terminal outcome. Flows wait on humans, so buckets stretch far.
	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playkit_auth_flow_duration_seconds",
			Help:    "A histogram of interactive login flow durations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"flow"},
	)
)
