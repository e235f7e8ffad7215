// Package startup handles configuration loading, tool checks and
// startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - OUTPUT_DIR: Root directory for job outputs, must be writable (default: /output)
//   - FFMPEG_PATH, FFPROBE_PATH: Tool binaries (default: ffmpeg, ffprobe from PATH)
//   - TRANSCODE_WORKERS: Concurrent job slots (default: half the available CPUs, max 4)
//   - JOB_RETENTION: How long finished jobs stay queryable (default: 1h)
//   - MAX_RETAINED_JOBS: Cap on finished jobs kept in memory (default: 500)
//   - JOB_TIMEOUT: Per-job deadline, 0 disables (default: 0)
//   - VIDEO_PRESET: x264 preset for every variant (default: veryfast)
//   - SEGMENT_DURATION: HLS segment length in seconds (default: 4)
//   - WATERMARK_FONT: Font file for video watermarks (default: fontconfig lookup)
//   - LOG_HTTP_REQUESTS: Log one line per API request (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
//
// # Lifecycle Logging
//
// [LogQueueInit], [LogToolCheck], [LogHTTPRoutes], [LogServerStarted] and the
// LogShutdown* functions print the banner-style sections seen in the
// service log.
package startup
