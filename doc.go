// Command media-pipeline runs the adaptive streaming transcoder as an HTTP
// service.
//
// Clients submit a source video to POST /api/jobs. Each job probes the
// source, plans a quality ladder that never upscales, encodes every rung
// to HLS with ffmpeg, writes a master playlist and optionally extracts
// thumbnails and a preview clip. Jobs run on a bounded number of worker
// slots; their status and progress are polled at GET /api/jobs/{id}.
//
// # Servers
//
//  1. Main server (PORT, default 8080): job API and health endpoints.
//  2. Metrics server (METRICS_PORT, default 9090): Prometheus /metrics,
//     disabled with METRICS_ENABLED=false.
//
// # Environment Variables
//
//   - OUTPUT_DIR: root for job outputs, one directory per job (default: /output)
//   - FFMPEG_PATH, FFPROBE_PATH: tool locations (default: resolved via PATH)
//   - TRANSCODE_WORKERS: concurrent jobs (default: half the CPUs, at most 4)
//   - JOB_RETENTION: how long finished jobs stay queryable (default: 1h)
//   - MAX_RETAINED_JOBS: cap on finished jobs kept (default: 500)
//   - JOB_TIMEOUT: default per-job timeout (default: none)
//   - VIDEO_PRESET: x264 preset (default: veryfast)
//   - SEGMENT_DURATION: HLS segment length in seconds (default: 4)
//   - WATERMARK_FONT: font file for video watermarks (default: fontconfig lookup)
//   - LOG_LEVEL, LOG_HTTP_REQUESTS: logging controls
//   - MEMORY_LIMIT, MEMORY_RATIO: container-aware GOMEMLIMIT
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the HTTP server stops accepting requests, the job
// queue cancels running jobs and fails queued ones, remaining ffmpeg
// processes are killed and the metrics server is stopped. All steps share
// a 30 second deadline.
//
// The one-shot command-line variant lives in cmd/pipeline.
package main
