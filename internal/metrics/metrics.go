package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts executor invocations by outcome and skip reason
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genstudio_executions_total",
			Help: "Total number of generation executor invocations",
		},
		[]string{"outcome", "reason"},
	)

	// ExecutionDuration tracks executor wall time
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genstudio_execution_duration_seconds",
			Help:    "Generation executor duration in seconds",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	// FailuresTotal counts classified job failures
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genstudio_job_failures_total",
			Help: "Total number of classified generation failures",
		},
		[]string{"kind", "retryable"},
	)

	// ProviderLatency tracks generation provider call latency
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genstudio_provider_latency_seconds",
			Help:    "Generation provider latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"provider"},
	)

	// RecoveryCandidates counts jobs found by recovery scans
	RecoveryCandidates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genstudio_recovery_candidates_total",
			Help: "Total number of jobs found by recovery scans",
		},
	)

	// RecoveryTriggers counts recovery dispatches by result
	RecoveryTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genstudio_recovery_triggers_total",
			Help: "Total number of recovery trigger dispatches",
		},
		[]string{"result"},
	)

	// InflightExecutions tracks executions spawned locally and still running
	InflightExecutions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genstudio_inflight_executions",
			Help: "Number of locally spawned executions still running",
		},
	)
)
