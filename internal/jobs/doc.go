// Package jobs is the in-memory job registry and scheduler.
//
// AddJob records a queued job and schedules it in the background; at most
// Config.Workers jobs run at once. CancelJob only succeeds while a job is
// still queued: once processing starts the job runs to completion or error.
// Terminal jobs are evicted after Config.Retention, and no more than
// Config.MaxJobs terminal jobs are kept.
//
// Status transitions follow models.JobStatus.CanTransition. Each job's own
// background task is the only writer of its progress and result.
package jobs
