// Package pipeline runs the per-job stage chain: probe, plan, thumbnails,
// preview, one segmented encode per variant, then the master manifest.
//
// Stages run sequentially. Probe, a missing tool, cancellation and an empty
// manifest fail the job; thumbnail and preview failures are kept as warnings
// and a failed variant is recorded while its siblings continue.
package pipeline
