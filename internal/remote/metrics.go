package remote

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values for call outcome.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairmind_remote_calls_total",
			Help: "Total number of calls to the remote evaluation service.",
		},
		[]string{"endpoint", "outcome"},
	)

	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairmind_remote_call_duration_seconds",
			Help:    "Duration of calls to the remote evaluation service, in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(callsTotal)
	prometheus.MustRegister(callDuration)

	for _, ep := range []string{PathModelUpload, PathDatasetUpload, PathDatasetGen, PathSimulationRun, PathRecentRuns} {
		callsTotal.WithLabelValues(ep, outcomeOK)
		callsTotal.WithLabelValues(ep, outcomeError)
	}
}

func observeCall(endpoint string, start time.Time, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	callsTotal.WithLabelValues(endpoint, outcome).Inc()
	callDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
