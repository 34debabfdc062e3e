package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters
var (
	InvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traindeck_invocations_total",
		Help: "Command invocations by command, transport and outcome",
	}, []string{"command", "transport", "outcome"})
	BaseURLUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traindeck_api_base_url_updates_total",
		Help: "Total successful set_api_base_url calls",
	})
	JournalErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "traindeck_journal_errors_total",
		Help: "Invocations that could not be written to the journal",
	})
	AuthFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traindeck_auth_failures_total",
		Help: "Rejected command requests by reason",
	}, []string{"reason"})
)

// Histograms
var (
	InvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "traindeck_invocation_duration_seconds",
		Help:    "Command handling latency",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	}, []string{"command"})
)
