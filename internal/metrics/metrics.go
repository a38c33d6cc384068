package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"

	FallbackFailover = "failover"
	FallbackMock     = "mock"
)

var (
	SourceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crop_price_source_attempts_total",
		Help: "Total number of live source fetch attempts",
	}, []string{"source", "outcome"})

	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crop_price_fallbacks_total",
		Help: "Total number of failover and mock fallbacks taken",
	}, []string{"kind"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crop_price_request_duration_seconds",
		Help:    "Latency of crop price lookups",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode", "success"})
)
