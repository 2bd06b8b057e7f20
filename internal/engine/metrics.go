package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/conductor/internal/model"
)

var (
	runningExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "conductor_running_executions",
			Help: "Number of executions currently holding a concurrency slot.",
		},
	)

	queuedExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "conductor_queued_executions",
			Help: "Number of executions waiting in the admission queue.",
		},
	)

	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conductor_executions_total",
			Help: "Total number of executions that reached a terminal status.",
		},
		[]string{"status"},
	)

	executionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conductor_execution_duration_seconds",
			Help:    "Wall-clock duration of finished executions, in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	droppedEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conductor_stream_dropped_events_total",
			Help: "Log chunks discarded because an observer fell too far behind.",
		},
	)
)

func init() {
	prometheus.MustRegister(runningExecutions)
	prometheus.MustRegister(queuedExecutions)
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionDuration)
	prometheus.MustRegister(droppedEventsTotal)

	// Pre-initialize terminal statuses so they appear in /metrics at zero.
	for _, s := range []model.Status{model.StatusSuccess, model.StatusFailed, model.StatusCancelled} {
		executionsTotal.WithLabelValues(string(s))
	}
}
