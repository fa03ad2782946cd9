package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "haven_jobs_total",
			Help: "Total number of recurring jobs by enabled state",
		},
		[]string{"enabled"},
	)

	JobExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_job_executions_total",
			Help: "Total number of job executions by outcome",
		},
		[]string{"outcome"},
	)

	JobExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haven_job_execution_duration_seconds",
			Help:    "Job execution duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800}, // 1s to 30min
		},
	)

	// Executor metrics
	SourcesDiscovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_sources_discovered_total",
			Help: "Total number of sources discovered by plugin",
		},
		[]string{"plugin"},
	)

	SourcesArchived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_sources_archived_total",
			Help: "Total number of sources archived by plugin",
		},
		[]string{"plugin"},
	)

	ArchiveFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_archive_failures_total",
			Help: "Total number of failed archive attempts by plugin",
		},
		[]string{"plugin"},
	)

	ArchiveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haven_archive_duration_seconds",
			Help:    "Archive duration in seconds by plugin",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"plugin"},
	)

	// Pipeline metrics
	PipelinesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "haven_pipelines_active",
			Help: "Number of pipelines currently in flight",
		},
	)

	PipelinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_pipelines_total",
			Help: "Total number of completed pipelines by outcome",
		},
		[]string{"outcome"},
	)

	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haven_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	StepResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_step_results_total",
			Help: "Total number of step results by step and status",
		},
		[]string{"step", "status"},
	)

	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haven_step_duration_seconds",
			Help:    "Step duration in seconds by step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	StepRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_step_retries_total",
			Help: "Total number of step retry attempts by step",
		},
		[]string{"step"},
	)

	// Event metrics: only events emitted by the pipeline manager are counted;
	// events published straight to the bus by steps or the executor are not.
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_events_published_total",
			Help: "Total number of pipeline manager events published by type",
		},
		[]string{"type"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobExecutionsTotal)
	prometheus.MustRegister(JobExecutionDuration)
	prometheus.MustRegister(SourcesDiscovered)
	prometheus.MustRegister(SourcesArchived)
	prometheus.MustRegister(ArchiveFailures)
	prometheus.MustRegister(ArchiveDuration)
	prometheus.MustRegister(PipelinesActive)
	prometheus.MustRegister(PipelinesTotal)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(StepResultsTotal)
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(StepRetriesTotal)
	prometheus.MustRegister(EventsPublished)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
