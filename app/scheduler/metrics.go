package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_task_runs_total",
			Help: "Tasks executed by the worker, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	taskRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_task_run_duration_seconds",
			Help:    "Task execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)
