/*
Package workers sizes the transcoding worker pool in containerized
environments.

# Overview

Go 1.19+ sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU
still reports the host's CPU count. Worker counts are derived from
GOMAXPROCS so the pipeline respects the limit it is given:

	// Wrong: returns 64 on a 64-core node even with a 2 CPU limit
	n := runtime.NumCPU()

	// Correct: returns 2
	n := runtime.GOMAXPROCS(0)

# Basic Usage

	// Concurrent FFmpeg jobs; each encode is already multi-threaded
	slots := workers.ForTranscode(4)

# Environment Variable Override

TRANSCODE_WORKERS pins the count. It is still capped by a non-zero limit
argument, so callers that want the override taken as-is pass 0:

	env:
	- name: TRANSCODE_WORKERS
	  value: "2"

With a 4 CPU limit and no override, ForTranscode(8) returns 2.
*/
package workers
