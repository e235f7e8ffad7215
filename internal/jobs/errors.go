package jobs

import (
	"errors"
	"fmt"

	"media-pipeline/internal/models"
)

var (
	// ErrInvalidJob is returned by AddJob for a missing input or output.
	ErrInvalidJob = errors.New("invalid job")

	// ErrQueueClosed is returned by AddJob after Shutdown.
	ErrQueueClosed = errors.New("job queue is shut down")

	// ErrCancelled is recorded as the error detail of a cancelled job.
	ErrCancelled = errors.New("job cancelled")

	// ErrShutdown is recorded on jobs that never started because the queue
	// shut down.
	ErrShutdown = errors.New("queue shut down before job started")
)

// DuplicateJobError is returned when a job id is already queued or running.
type DuplicateJobError struct {
	ID     string
	Status models.JobStatus
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job %q already exists (%s)", e.ID, e.Status)
}
