package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for gitpipe.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
type Metrics struct {
	// Scheduler metrics
	SchedulerRunning  prometheus.Gauge
	SchedulerPending  prometheus.Gauge
	AdmissionWait     prometheus.Histogram
	AdmissionsAborted prometheus.Counter

	// Task execution metrics
	TaskExecutions *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec

	// Process metrics
	ProcessSpawns *prometheus.CounterVec
	ProcessExits  *prometheus.CounterVec

	// Failure metrics
	FatalPurges         prometheus.Counter
	PurgedTasks         prometheus.Counter
	PluginCancellations *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		SchedulerRunning: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gitpipe_scheduler_running",
			Help: "Number of admission tickets currently occupying a process slot",
		}),
		SchedulerPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gitpipe_scheduler_pending",
			Help: "Number of admission tickets waiting for a process slot",
		}),
		AdmissionWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gitpipe_scheduler_admission_wait_seconds",
			Help:    "Time between requesting and receiving an admission ticket",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		AdmissionsAborted: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitpipe_scheduler_admissions_aborted_total",
			Help: "Admission requests abandoned because their context ended",
		}),

		TaskExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitpipe_task_executions_total",
				Help: "Total number of settled tasks",
			},
			[]string{"command", "outcome"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gitpipe_task_duration_seconds",
				Help:    "Task duration from admission to settlement in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),

		ProcessSpawns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitpipe_process_spawns_total",
				Help: "Total number of git processes spawned",
			},
			[]string{"command"},
		),
		ProcessExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitpipe_process_exits_total",
				Help: "Total number of finalized git processes by exit code",
			},
			[]string{"exit_code"},
		),

		FatalPurges: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitpipe_fatal_purges_total",
			Help: "Number of times a chain was purged after a fatal error",
		}),
		PurgedTasks: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitpipe_purged_tasks_total",
			Help: "Number of queued tasks failed without starting because of a purge",
		}),
		PluginCancellations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gitpipe_plugin_cancellations_total",
				Help: "Tasks cancelled by a plugin",
			},
			[]string{"plugin"},
		),
	}
}

// ObserveScheduler records the scheduler's queue lengths.
func (m *Metrics) ObserveScheduler(running, pending int) {
	if m == nil {
		return
	}
	m.SchedulerRunning.Set(float64(running))
	m.SchedulerPending.Set(float64(pending))
}

// ObserveAdmission records how long a ticket waited. Aborted admissions are
// counted but not timed.
func (m *Metrics) ObserveAdmission(wait time.Duration, aborted bool) {
	if m == nil {
		return
	}
	if aborted {
		m.AdmissionsAborted.Inc()
		return
	}
	m.AdmissionWait.Observe(wait.Seconds())
}

// ObserveTask records a settled task.
func (m *Metrics) ObserveTask(command, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TaskExecutions.WithLabelValues(command, outcome).Inc()
	m.TaskDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// ObserveSpawn records a spawned process.
func (m *Metrics) ObserveSpawn(command string) {
	if m == nil {
		return
	}
	m.ProcessSpawns.WithLabelValues(command).Inc()
}

// ObserveExit records a finalized process.
func (m *Metrics) ObserveExit(exitCode int) {
	if m == nil {
		return
	}
	m.ProcessExits.WithLabelValues(strconv.Itoa(exitCode)).Inc()
}

// ObservePurge records a fatal purge and the number of tasks it dropped.
func (m *Metrics) ObservePurge(purged int) {
	if m == nil {
		return
	}
	m.FatalPurges.Inc()
	m.PurgedTasks.Add(float64(purged))
}

// ObserveCancellation records a task cancelled by the named plugin.
func (m *Metrics) ObserveCancellation(plugin string) {
	if m == nil {
		return
	}
	m.PluginCancellations.WithLabelValues(plugin).Inc()
}
