package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"media-pipeline/internal/jobs"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/models"
)

// fakeJobs is an in-memory JobService.
type fakeJobs struct {
	mu      sync.Mutex
	jobs    map[string]models.Job
	order   []string
	addErr  error
	lastOut string
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]models.Job)}
}

func (f *fakeJobs) AddJob(id, input, outputDir string, opts models.JobOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	if existing, ok := f.jobs[id]; ok && !existing.Status.IsTerminal() {
		return "", &jobs.DuplicateJobError{ID: id, Status: existing.Status}
	}
	f.lastOut = outputDir
	f.jobs[id] = models.Job{ID: id, Input: input, OutputDir: outputDir, Options: opts,
		Status: models.StatusQueued, CreatedAt: time.Now()}
	f.order = append(f.order, id)
	return id, nil
}

func (f *fakeJobs) GetStatus(id string) (models.Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	return j, ok
}

func (f *fakeJobs) CancelJob(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok || j.Status != models.StatusQueued {
		return false
	}
	j.Status = models.StatusCancelled
	f.jobs[id] = j
	return true
}

func (f *fakeJobs) List() []models.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Job, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.jobs[id])
	}
	return out
}

func (f *fakeJobs) GetStats() metrics.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := metrics.Stats{Total: len(f.jobs), ByStatus: map[string]int{}}
	for _, j := range f.jobs {
		s.ByStatus[string(j.Status)]++
	}
	return s
}

func (f *fakeJobs) set(j models.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[j.ID]; !ok {
		f.order = append(f.order, j.ID)
	}
	f.jobs[j.ID] = j
}

func newTestRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs", h.CreateJob).Methods(http.MethodPost)
	api.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods(http.MethodPost)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
}

func TestCreateJob(t *testing.T) {
	svc := newFakeJobs()
	r := newTestRouter(New(svc, "/output"))

	w := do(t, r, http.MethodPost, "/api/jobs",
		`{"id":"clip-1","input":"/media/in.mp4","options":{"thumbnailCount":5,"generatePreview":true,"timeoutSeconds":90}}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/api/jobs/clip-1" {
		t.Errorf("Location = %q", loc)
	}

	var job models.Job
	decode(t, w, &job)
	if job.ID != "clip-1" || job.Status != models.StatusQueued {
		t.Errorf("job = %+v", job)
	}
	if job.OutputDir != filepath.Join("/output", "clip-1") {
		t.Errorf("OutputDir = %s", job.OutputDir)
	}
	if job.Options.ThumbnailCount != 5 || job.Options.Timeout != 90*time.Second {
		t.Errorf("options = %+v", job.Options)
	}
	if job.Options.PreviewDurationSeconds != models.DefaultPreviewSeconds {
		t.Errorf("preview default not applied: %v", job.Options.PreviewDurationSeconds)
	}
}

func TestCreateJobGeneratesID(t *testing.T) {
	svc := newFakeJobs()
	r := newTestRouter(New(svc, "/output"))

	w := do(t, r, http.MethodPost, "/api/jobs", `{"input":"https://cdn.example.com/a.mp4"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var job models.Job
	decode(t, w, &job)
	if len(job.ID) != 36 {
		t.Errorf("generated id = %q", job.ID)
	}
	if svc.lastOut != filepath.Join("/output", job.ID) {
		t.Errorf("output dir = %s", svc.lastOut)
	}
}

func TestCreateJobRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"input":`, http.StatusBadRequest},
		{"unknown field", `{"input":"/a.mp4","outputDir":"/etc"}`, http.StatusBadRequest},
		{"path traversal id", `{"id":"../etc","input":"/a.mp4"}`, http.StatusBadRequest},
		{"long id", `{"id":"` + strings.Repeat("a", 65) + `","input":"/a.mp4"}`, http.StatusBadRequest},
		{"missing input", `{"id":"x"}`, http.StatusBadRequest},
		{"option-like input", `{"input":"-i"}`, http.StatusBadRequest},
		{"other protocol", `{"input":"rtmp://host/live"}`, http.StatusBadRequest},
		{"bad watermark", `{"input":"/a.mp4","options":{"watermark":"x':y"}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeJobs()
			r := newTestRouter(New(svc, "/output"))
			w := do(t, r, http.MethodPost, "/api/jobs", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if len(svc.jobs) != 0 {
				t.Error("rejected request reached the queue")
			}
		})
	}
}

func TestCreateJobQueueErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid options", models.ErrInvalidOptions, http.StatusBadRequest},
		{"invalid job", jobs.ErrInvalidJob, http.StatusBadRequest},
		{"closed", jobs.ErrQueueClosed, http.StatusServiceUnavailable},
		{"duplicate", &jobs.DuplicateJobError{ID: "x", Status: models.StatusProcessing}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeJobs()
			svc.addErr = tt.err
			w := do(t, newTestRouter(New(svc, "/output")), http.MethodPost, "/api/jobs", `{"input":"/a.mp4"}`)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestCreateJobDuplicate(t *testing.T) {
	r := newTestRouter(New(newFakeJobs(), "/output"))
	body := `{"id":"dup","input":"/a.mp4"}`
	if w := do(t, r, http.MethodPost, "/api/jobs", body); w.Code != http.StatusAccepted {
		t.Fatalf("first submit = %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/jobs", body); w.Code != http.StatusConflict {
		t.Errorf("second submit = %d, want 409", w.Code)
	}
}

func TestGetJob(t *testing.T) {
	svc := newFakeJobs()
	svc.set(models.Job{ID: "done", Status: models.StatusCompleted, ProgressPercent: 100,
		Result: &models.PipelineResult{ManifestPath: "/output/done/master.m3u8"}})
	r := newTestRouter(New(svc, "/output"))

	w := do(t, r, http.MethodGet, "/api/jobs/done", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var job models.Job
	decode(t, w, &job)
	if job.Result == nil || job.Result.ManifestPath != "/output/done/master.m3u8" || job.ProgressPercent != 100 {
		t.Errorf("job = %+v", job)
	}

	if w := do(t, r, http.MethodGet, "/api/jobs/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", w.Code)
	}
}

func TestListJobs(t *testing.T) {
	svc := newFakeJobs()
	svc.set(models.Job{ID: "a", Status: models.StatusCompleted})
	svc.set(models.Job{ID: "b", Status: models.StatusQueued})
	svc.set(models.Job{ID: "c", Status: models.StatusCompleted})
	r := newTestRouter(New(svc, "/output"))

	var resp struct {
		Jobs  []models.Job `json:"jobs"`
		Count int          `json:"count"`
	}

	w := do(t, r, http.MethodGet, "/api/jobs", "")
	decode(t, w, &resp)
	if resp.Count != 3 || len(resp.Jobs) != 3 {
		t.Errorf("unfiltered count = %d", resp.Count)
	}

	w = do(t, r, http.MethodGet, "/api/jobs?status=completed", "")
	decode(t, w, &resp)
	if resp.Count != 2 || resp.Jobs[0].ID != "a" || resp.Jobs[1].ID != "c" {
		t.Errorf("filtered = %+v", resp)
	}

	if w := do(t, r, http.MethodGet, "/api/jobs?status=bogus", ""); w.Code != http.StatusBadRequest {
		t.Errorf("unknown status filter = %d, want 400", w.Code)
	}
}

func TestCancelJob(t *testing.T) {
	svc := newFakeJobs()
	svc.set(models.Job{ID: "waiting", Status: models.StatusQueued})
	svc.set(models.Job{ID: "running", Status: models.StatusProcessing})
	r := newTestRouter(New(svc, "/output"))

	tests := []struct {
		id         string
		wantCode   int
		wantResult bool
		wantStatus models.JobStatus
	}{
		{"waiting", http.StatusOK, true, models.StatusCancelled},
		{"running", http.StatusOK, false, models.StatusProcessing},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/jobs/"+tt.id+"/cancel", "")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d", w.Code)
			}
			var resp struct {
				Cancelled bool             `json:"cancelled"`
				Status    models.JobStatus `json:"status"`
			}
			decode(t, w, &resp)
			if resp.Cancelled != tt.wantResult || resp.Status != tt.wantStatus {
				t.Errorf("resp = %+v", resp)
			}
		})
	}

	if w := do(t, r, http.MethodPost, "/api/jobs/nope/cancel", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown job cancel = %d, want 404", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	svc := newFakeJobs()
	svc.set(models.Job{ID: "a", Status: models.StatusQueued})
	h := New(svc, "/output")
	r := newTestRouter(h)

	w := do(t, r, http.MethodGet, "/healthz", "")
	var health HealthResponse
	decode(t, w, &health)
	if w.Code != http.StatusOK || health.Status != statusHealthy || !health.Ready || health.Jobs != 1 {
		t.Errorf("health = %d %+v", w.Code, health)
	}
	if health.JobsByStat["queued"] != 1 {
		t.Errorf("jobsByStatus = %v", health.JobsByStat)
	}

	if w := do(t, r, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Errorf("readyz = %d", w.Code)
	}

	h.SetReadiness(func() bool { return false })
	if w := do(t, r, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz when not ready = %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/healthz", "")
	decode(t, w, &health)
	if health.Status != statusDegraded {
		t.Errorf("health status = %s, want degraded", health.Status)
	}

	if w := do(t, r, http.MethodHead, "/livez", ""); w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d bytes", w.Code, w.Body.Len())
	}
}

func TestGetVersion(t *testing.T) {
	w := do(t, newTestRouter(New(newFakeJobs(), "/output")), http.MethodGet, "/version", "")
	var info map[string]string
	decode(t, w, &info)
	if info["version"] == "" || info["goVersion"] == "" {
		t.Errorf("version = %v", info)
	}
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Error("missing Cache-Control")
	}
}

func TestMetricsHandler(t *testing.T) {
	metrics.JobsSubmittedTotal.Add(0)
	w := httptest.NewRecorder()
	New(newFakeJobs(), "/output").MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "media_pipeline_jobs_submitted_total") {
		t.Error("metrics output missing job counter")
	}
}
