// Package metrics provides Prometheus instrumentation for the transcoding
// pipeline.
//
// All metrics are prefixed with "media_pipeline_" and registered on the
// default registry through promauto.
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Job Queue Metrics
//   - JobsSubmittedTotal: Counter of accepted jobs
//   - JobsFinishedTotal: Counter of jobs by terminal status
//   - JobDuration: Histogram of processing time by terminal status
//   - JobsInProgress: Gauge of jobs holding a worker slot
//   - JobsByStatus: Gauge of registry contents, refreshed by the Collector
//   - JobsEvictedTotal: Counter of terminal jobs dropped from the registry
//
// ## Pipeline Metrics
//   - StageDuration / StageFailuresTotal: per stage (probe, plan, thumbnails,
//     preview, variants, manifest)
//   - VariantsEncodedTotal: per rendition and outcome
//   - ThumbnailsGeneratedTotal / ThumbnailRenderDuration
//
// ## Tool Metrics
//   - ToolInvocationsTotal: ffmpeg/ffprobe runs by outcome
//     (success, failure, unavailable, cancelled)
//   - ToolDuration: process wall time
//   - ToolProcessesActive: running child processes
//
// ## Output Filesystem Metrics
//   - FilesystemStaleErrors: ESTALE errors by operation (read, rename)
//   - FilesystemRetriesTotal: retried operations by outcome
//     (recovered, exhausted)
//
// # Usage
//
// Expose the registry with promhttp on the metrics port:
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// Failure rate of variant encodes:
//
//	sum(rate(media_pipeline_variants_encoded_total{status="error"}[15m])) /
//	sum(rate(media_pipeline_variants_encoded_total[15m]))
package metrics
