package monitoring

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChatResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_chat_responses_total",
			Help: "Chat responses returned, by kind",
		},
		[]string{"kind"},
	)

	DebounceSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_debounce_submissions_total",
			Help: "Debounced submissions, by result (processed, coalesced, aborted)",
		},
		[]string{"result"},
	)

	OrderWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_order_writes_total",
			Help: "Order documents written by the consolidation engine, by kind",
		},
		[]string{"kind"},
	)

	CancellationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafe_cancellation_outcomes_total",
			Help: "Cancellation policy decisions, by outcome",
		},
		[]string{"outcome"},
	)

	ClassifierLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cafe_classifier_latency_seconds",
			Help:    "Time spent waiting on the intent classifier",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ChatResponses,
		DebounceSubmissions,
		OrderWrites,
		CancellationOutcomes,
		ClassifierLatency,
	}
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
