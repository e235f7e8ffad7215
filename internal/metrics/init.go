package metrics

import "media-pipeline/internal/models"

// Ladder rung names pre-populated for the variant counter. Fallback rungs
// are named after the source height and appear on first use.
var ladderNames = []string{"360p", "480p", "720p", "1080p"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range models.AllStatuses {
		JobsByStatus.WithLabelValues(string(status))
		if status.IsTerminal() {
			JobsFinishedTotal.WithLabelValues(string(status))
			JobDuration.WithLabelValues(string(status))
		}
	}

	for _, stage := range models.AllStages {
		StageDuration.WithLabelValues(stage)
		StageFailuresTotal.WithLabelValues(stage)
	}

	for _, name := range ladderNames {
		VariantsEncodedTotal.WithLabelValues(name, "success")
		VariantsEncodedTotal.WithLabelValues(name, "error")
	}

	ThumbnailsGeneratedTotal.WithLabelValues("success")
	ThumbnailsGeneratedTotal.WithLabelValues("error")

	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		ToolDuration.WithLabelValues(tool)
		ToolProcessesActive.WithLabelValues(tool)
		for _, status := range []string{ToolStatusSuccess, ToolStatusFailure, ToolStatusUnavailable, ToolStatusCancelled} {
			ToolInvocationsTotal.WithLabelValues(tool, status)
		}
	}
}
