// Package ffmpeg runs FFmpeg and FFprobe as child processes.
//
// It is the only place that touches os/exec. Callers describe a run as an
// Invocation (tool plus argv) and get back either an Outcome or one of two
// typed errors:
//   - ToolUnavailableError when the binary cannot be found or started
//   - EncodeError when it exits non-zero, carrying the tail of stderr
//
// Progress is read from the "-progress pipe:1" key=value stream on stdout
// by a ProgressParser and folded into a monotonic percentage by a
// ProgressTracker.
package ffmpeg
