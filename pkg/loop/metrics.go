package loop

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	totalTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loop_tasks_total",
		Help: "total number of tasks scheduled on an event loop",
	}, []string{"loop", "queue"})

	queuedTasks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loop_tasks_queued",
		Help: "Current number of queued tasks",
	}, []string{"loop", "queue"})

	taskExecDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loop_task_exec_duration_seconds",
			Help:    "Histogram for the task execution duration of the event loop",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"loop"},
	)
)

func init() {
	prometheus.MustRegister(totalTasks, queuedTasks, taskExecDuration)
}
