// Package metrics exposes the daemon's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APICallsTotal counts wrapped API calls by outcome classification
	APICallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clockout",
		Name:      "api_calls_total",
		Help:      "API calls issued through the refresh orchestrator, by outcome.",
	}, []string{"outcome"})

	// RefreshAttemptsTotal counts token recovery cycles by result
	RefreshAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clockout",
		Name:      "token_refresh_attempts_total",
		Help:      "Token refresh cycles, by result.",
	}, []string{"result"})

	// StorePersistFailuresTotal counts tokens obtained but not persisted
	StorePersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clockout",
		Name:      "token_store_persist_failures_total",
		Help:      "Tokens successfully extracted but not written to the store.",
	})

	// PollsTotal counts clock-out list polls by status
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clockout",
		Name:      "polls_total",
		Help:      "Clock-out list polls, by status.",
	}, []string{"status"})

	// ImagesAnnotatedTotal counts images downloaded and annotated
	ImagesAnnotatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "clockout",
		Name:      "images_annotated_total",
		Help:      "Clock-out images downloaded and annotated.",
	})
)
