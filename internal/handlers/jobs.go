package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"media-pipeline/internal/jobs"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/models"
	"media-pipeline/internal/transcoder"
)

const maxRequestBody = 64 << 10

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// CreateJobRequest is the body of POST /api/jobs.
type CreateJobRequest struct {
	ID      string            `json:"id,omitempty"`
	Input   string            `json:"input"`
	Options JobOptionsRequest `json:"options"`
}

// JobOptionsRequest mirrors models.JobOptions with the timeout in seconds.
type JobOptionsRequest struct {
	ThumbnailCount         int     `json:"thumbnailCount"`
	GeneratePreview        bool    `json:"generatePreview"`
	PreviewDurationSeconds float64 `json:"previewDurationSeconds,omitempty"`
	Watermark              string  `json:"watermark,omitempty"`
	TimeoutSeconds         float64 `json:"timeoutSeconds,omitempty"`
}

func (o JobOptionsRequest) toModel() models.JobOptions {
	return models.JobOptions{
		ThumbnailCount:         o.ThumbnailCount,
		GeneratePreview:        o.GeneratePreview,
		PreviewDurationSeconds: o.PreviewDurationSeconds,
		Watermark:              o.Watermark,
		Timeout:                time.Duration(o.TimeoutSeconds * float64(time.Second)),
	}
}

// CreateJob validates and queues a job.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateJobRequest
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		req.ID = uuid.NewString()
	} else if !jobIDPattern.MatchString(req.ID) {
		writeJSONError(w, "id must be 1-64 characters of letters, digits, '-' or '_'", http.StatusBadRequest)
		return
	}

	req.Input = strings.TrimSpace(req.Input)
	if err := transcoder.ValidateInput(req.Input); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := req.Options.toModel().WithDefaults()
	if err := transcoder.ValidateWatermark(opts.Watermark); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.jobs.AddJob(req.ID, req.Input, filepath.Join(h.outputDir, req.ID), opts)
	if err != nil {
		writeJSONError(w, err.Error(), addJobStatus(err))
		return
	}

	job, ok := h.jobs.GetStatus(id)
	if !ok {
		// Evicted between add and read; only possible with tiny retention.
		writeJSONStatus(w, http.StatusAccepted, map[string]string{"id": id})
		return
	}
	w.Header().Set("Location", "/api/jobs/"+id)
	writeJSONStatus(w, http.StatusAccepted, job)
}

func addJobStatus(err error) int {
	var dup *jobs.DuplicateJobError
	switch {
	case errors.As(err, &dup):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrInvalidJob), errors.Is(err, models.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrQueueClosed):
		return http.StatusServiceUnavailable
	default:
		logging.Error("Failed to add job: %v", err)
		return http.StatusInternalServerError
	}
}

// ListJobs returns every retained job, oldest first.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	list := h.jobs.List()

	if filter := r.URL.Query().Get("status"); filter != "" {
		status := models.JobStatus(filter)
		if !isKnownStatus(status) {
			writeJSONError(w, fmt.Sprintf("unknown status %q", filter), http.StatusBadRequest)
			return
		}
		filtered := list[:0]
		for _, j := range list {
			if j.Status == status {
				filtered = append(filtered, j)
			}
		}
		list = filtered
	}

	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob returns one job's status.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := h.jobs.GetStatus(id)
	if !ok {
		writeJSONError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, job)
}

// CancelJob cancels a queued job. Jobs that already started report
// cancelled=false and keep running.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.jobs.GetStatus(id); !ok {
		writeJSONError(w, "job not found", http.StatusNotFound)
		return
	}

	cancelled := h.jobs.CancelJob(id)
	job, _ := h.jobs.GetStatus(id)
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"id":        id,
		"cancelled": cancelled,
		"status":    job.Status,
	})
}

func isKnownStatus(s models.JobStatus) bool {
	for _, known := range models.AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}
