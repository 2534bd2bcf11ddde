package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apexintel_parsing_seconds",
		Help:    "Time spent parsing a source file and building its symbol table.",
		Buckets: prometheus.DefBuckets,
	})

	ResolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apexintel_resolution_seconds",
		Help:    "Time spent in a resolution pass.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pass"})

	GraphSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apexintel_graph_symbols_total",
		Help: "Total number of symbols indexed in the workspace graph.",
	})

	GraphFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apexintel_graph_files_total",
		Help: "Total number of file contributions in the workspace graph.",
	})

	TaskQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apexintel_task_queue_depth",
		Help: "Current number of queued scheduler tasks.",
	})

	TasksEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apexintel_tasks_enqueued_total",
		Help: "Total number of tasks accepted by the scheduler.",
	})

	TasksSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apexintel_tasks_superseded_total",
		Help: "Total number of queued tasks replaced by a newer task for the same key.",
	})

	TasksCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apexintel_tasks_completed_total",
		Help: "Total number of finished tasks by outcome.",
	}, []string{"outcome"})

	TaskRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apexintel_task_retries_total",
		Help: "Total number of task retry requeues.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apexintel_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	UnresolvedReferences = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apexintel_unresolved_references",
		Help: "References left unresolved after the latest cross-file pass.",
	})
)
