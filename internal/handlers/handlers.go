package handlers

import (
	"time"

	"media-pipeline/internal/metrics"
	"media-pipeline/internal/models"
)

// JobService is the part of *jobs.Queue the handlers use.
type JobService interface {
	AddJob(id, input, outputDir string, opts models.JobOptions) (string, error)
	GetStatus(id string) (models.Job, bool)
	CancelJob(id string) bool
	List() []models.Job
	GetStats() metrics.Stats
}

type Handlers struct {
	jobs      JobService
	outputDir string
	startTime time.Time
	ready     func() bool
}

// New creates the handlers. Jobs are written below outputDir.
func New(jobs JobService, outputDir string) *Handlers {
	return &Handlers{
		jobs:      jobs,
		outputDir: outputDir,
		startTime: time.Now(),
		ready:     func() bool { return true },
	}
}

// SetReadiness replaces the readiness check, e.g. with the tool check result.
func (h *Handlers) SetReadiness(fn func() bool) {
	if fn != nil {
		h.ready = fn
	}
}
