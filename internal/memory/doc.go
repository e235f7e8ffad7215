// Package memory sets the Go runtime soft memory limit from the container
// limit at startup.
//
// The service shares its container with the ffmpeg processes it starts,
// and those children hold nearly all of the memory during an encode. The
// Go heap is therefore given only a small slice of the container limit
// (DefaultMemoryRatio) so the garbage collector works harder before the
// kernel OOM killer picks an ffmpeg process.
//
// Environment:
//
//	GOMEMLIMIT    standard Go setting; when present it wins and is only reported
//	MEMORY_LIMIT  container limit in bytes, e.g. from the Kubernetes Downward API
//	MEMORY_RATIO  share of MEMORY_LIMIT for the Go heap, 0 < ratio <= 1
package memory
