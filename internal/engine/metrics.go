package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adhit-r/fairmind-sub003/internal/model"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairmind_simulation_runs_total",
			Help: "Total number of simulation runs by outcome.",
		},
		[]string{"outcome"},
	)

	runsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fairmind_simulation_runs_rejected_total",
			Help: "Run invocations ignored because a run was already in progress.",
		},
	)

	runInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairmind_simulation_run_in_progress",
			Help: "1 while a simulation run is executing.",
		},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairmind_stage_duration_seconds",
			Help:    "Duration of pipeline stages, in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage", "status"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runsRejected)
	prometheus.MustRegister(runInProgress)
	prometheus.MustRegister(stageDuration)

	runsTotal.WithLabelValues(model.RunStatusSucceeded)
	runsTotal.WithLabelValues(model.RunStatusFailed)
}

func observeStage(id string, status model.StageStatus, start time.Time) {
	stageDuration.WithLabelValues(id, string(status)).Observe(time.Since(start).Seconds())
}
