package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Filesystem retry outcomes.
const (
	RetryOutcomeRecovered = "recovered"
	RetryOutcomeExhausted = "exhausted"
)

// Tool invocation statuses.
const (
	ToolStatusSuccess     = "success"
	ToolStatusFailure     = "failure"
	ToolStatusUnavailable = "unavailable"
	ToolStatusCancelled   = "cancelled"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job queue metrics
var (
	JobsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_pipeline_jobs_submitted_total",
			Help: "Total number of jobs accepted by the queue",
		},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_jobs_finished_total",
			Help: "Total number of jobs that reached a terminal status",
		},
		[]string{"status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_job_duration_seconds",
			Help:    "Wall time from processing start to terminal status",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"status"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_jobs_in_progress",
			Help: "Number of jobs currently holding a worker slot",
		},
	)

	JobsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_jobs",
			Help: "Number of jobs in the registry by status",
		},
		[]string{"status"},
	)

	JobsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_pipeline_jobs_evicted_total",
			Help: "Total number of terminal jobs removed from the registry",
		},
	)
)

// Pipeline stage metrics
var (
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	StageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_stage_failures_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage"},
	)

	VariantsEncodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_variants_encoded_total",
			Help: "Total number of variant encodes by rendition and outcome",
		},
		[]string{"variant", "status"},
	)

	ThumbnailsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_thumbnails_generated_total",
			Help: "Total number of thumbnail images written",
		},
		[]string{"status"},
	)

	ThumbnailRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_thumbnail_render_duration_seconds",
			Help:    "Time to decode, resize and encode one extracted frame",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
)

// External tool metrics
var (
	ToolInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_tool_invocations_total",
			Help: "Total number of ffmpeg/ffprobe invocations by outcome",
		},
		[]string{"tool", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_tool_duration_seconds",
			Help:    "Wall time of ffmpeg/ffprobe processes",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
		},
		[]string{"tool"},
	)

	ToolProcessesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_tool_processes_active",
			Help: "Number of running ffmpeg/ffprobe child processes",
		},
		[]string{"tool"},
	)
)

// Output filesystem metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_fs_stale_errors_total",
			Help: "Stale file handle errors seen on output files, by operation",
		},
		[]string{"operation"},
	)

	FilesystemRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_fs_retries_total",
			Help: "Retried output filesystem operations by final outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// Runtime metrics
var (
	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_go_memalloc_bytes",
			Help: "Current Go heap allocation in bytes",
		},
	)

	GoGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_go_goroutines",
			Help: "Number of goroutines",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
