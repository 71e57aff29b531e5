package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scribe_runs_started_total",
		Help: "Report runs picked up by the workflow engine.",
	})
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_runs_finished_total",
		Help: "Report runs finished, by terminal status.",
	}, []string{"status"})
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scribe_phase_duration_seconds",
		Help:    "Wall-clock duration of each pipeline phase.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"phase"})
	phaseRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scribe_phase_retries_total",
		Help: "Phase attempts beyond the first, by phase.",
	}, []string{"phase"})
)
