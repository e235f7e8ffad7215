// Package filesystem retries output-file operations that fail with a stale
// NFS file handle.
//
// Job outputs are often written to a network share that a CDN origin
// serves from. When another host replaces a directory entry, the next
// stat, read or rename on this host can fail with ESTALE even though a
// fresh lookup would succeed. Only ESTALE is retried; every other error
// is returned immediately.
//
// Retries use capped exponential backoff and are counted in the
// media_pipeline_fs_* metrics.
package filesystem
