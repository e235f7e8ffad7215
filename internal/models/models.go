package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MediaProbe describes a source file as reported by ffprobe.
type MediaProbe struct {
	DurationSeconds float64 `json:"durationSeconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	BitrateBps      int64   `json:"bitrateBps"`
	Framerate       float64 `json:"framerate"`
	ContainerFormat string  `json:"containerFormat"`
	VideoCodec      string  `json:"videoCodec"`
	AudioCodec      string  `json:"audioCodec,omitempty"`
}

// HasAudio reports whether the source carries an audio stream.
func (p *MediaProbe) HasAudio() bool {
	return p != nil && p.AudioCodec != ""
}

// VariantSpec is one rung of the quality ladder.
type VariantSpec struct {
	Name              string  `json:"name"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	TargetBitrateKbps int     `json:"targetBitrateKbps"`
	MaxrateKbps       int     `json:"maxrateKbps"`
	BufsizeKb         int     `json:"bufsizeKb"`
	Codec             string  `json:"codec"`
	Preset            string  `json:"preset"`
	Profile           string  `json:"profile"`
	Level             string  `json:"level"`
	FPS               float64 `json:"fps"`
	AudioBitrateKbps  int     `json:"audioBitrateKbps"`
	SegmentSeconds    int     `json:"segmentSeconds"`
}

// Resolution returns the WIDTHxHEIGHT form used in playlists.
func (v VariantSpec) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// BandwidthBps is the peak bandwidth advertised for the variant.
func (v VariantSpec) BandwidthBps() int {
	peak := v.MaxrateKbps
	if peak < v.TargetBitrateKbps {
		peak = v.TargetBitrateKbps
	}
	return (peak + v.AudioBitrateKbps) * 1000
}

// AverageBandwidthBps is the target video plus audio bitrate.
func (v VariantSpec) AverageBandwidthBps() int {
	return (v.TargetBitrateKbps + v.AudioBitrateKbps) * 1000
}

// CapFrameRate returns a copy whose FPS does not exceed the source rate.
// An unknown source rate (<= 0) leaves the variant unchanged.
func (v VariantSpec) CapFrameRate(source float64) VariantSpec {
	if source > 0 && (v.FPS <= 0 || v.FPS > source) {
		v.FPS = source
	}
	return v
}

// TranscodeResult is the outcome of encoding one variant.
type TranscodeResult struct {
	Variant      VariantSpec `json:"variant"`
	Name         string      `json:"name"`
	OutputDir    string      `json:"outputDir"`
	PlaylistPath string      `json:"playlistPath,omitempty"`
	Success      bool        `json:"success"`
	Error        string      `json:"error,omitempty"`
}

// PipelineResult aggregates everything a completed job produced.
type PipelineResult struct {
	ManifestPath string            `json:"manifestPath"`
	Thumbnails   []string          `json:"thumbnails"`
	PreviewPath  string            `json:"previewPath,omitempty"`
	Variants     []TranscodeResult `json:"variants"`
	Probe        *MediaProbe       `json:"probe,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// SucceededVariants counts the variants that encoded successfully.
func (r *PipelineResult) SucceededVariants() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, v := range r.Variants {
		if v.Success {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so snapshots never share slices with the
// job's own record.
func (r *PipelineResult) Clone() *PipelineResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Thumbnails = append([]string(nil), r.Thumbnails...)
	c.Variants = append([]TranscodeResult(nil), r.Variants...)
	c.Warnings = append([]string(nil), r.Warnings...)
	if r.Probe != nil {
		p := *r.Probe
		c.Probe = &p
	}
	return &c
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
	StatusCancelled  JobStatus = "cancelled"
)

// AllStatuses lists every status, used to pre-populate metric labels.
var AllStatuses = []JobStatus{StatusQueued, StatusProcessing, StatusCompleted, StatusError, StatusCancelled}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

var validTransitions = map[JobStatus][]JobStatus{
	StatusQueued:     {StatusProcessing, StatusCancelled, StatusError},
	StatusProcessing: {StatusCompleted, StatusError, StatusCancelled},
}

// CanTransition reports whether moving from s to next is allowed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DefaultPreviewSeconds is used when a preview is requested without a length.
const DefaultPreviewSeconds = 10.0

// MaxThumbnails bounds the thumbnail count a single job may request.
const MaxThumbnails = 100

// ErrInvalidOptions is returned by JobOptions.Validate.
var ErrInvalidOptions = errors.New("invalid job options")

// JobOptions carries the per-job knobs.
type JobOptions struct {
	ThumbnailCount         int           `json:"thumbnailCount"`
	GeneratePreview        bool          `json:"generatePreview"`
	PreviewDurationSeconds float64       `json:"previewDurationSeconds,omitempty"`
	Watermark              string        `json:"watermark,omitempty"`
	Timeout                time.Duration `json:"timeout,omitempty"`
}

// WithDefaults fills unset values.
func (o JobOptions) WithDefaults() JobOptions {
	if o.GeneratePreview && o.PreviewDurationSeconds <= 0 {
		o.PreviewDurationSeconds = DefaultPreviewSeconds
	}
	o.Watermark = strings.TrimSpace(o.Watermark)
	return o
}

// Validate checks option ranges. Watermark content is checked by the
// transcoder, which owns the filter syntax it ends up in.
func (o JobOptions) Validate() error {
	if o.ThumbnailCount < 0 || o.ThumbnailCount > MaxThumbnails {
		return fmt.Errorf("%w: thumbnailCount must be between 0 and %d", ErrInvalidOptions, MaxThumbnails)
	}
	if o.PreviewDurationSeconds < 0 {
		return fmt.Errorf("%w: previewDurationSeconds must not be negative", ErrInvalidOptions)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidOptions)
	}
	return nil
}

// Job is a point-in-time view of a queued or running job.
type Job struct {
	ID              string          `json:"id"`
	Input           string          `json:"input"`
	OutputDir       string          `json:"outputDir"`
	Options         JobOptions      `json:"options"`
	Status          JobStatus       `json:"status"`
	ProgressPercent float64         `json:"progressPercent"`
	Stage           string          `json:"stage,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	FinishedAt      *time.Time      `json:"finishedAt,omitempty"`
	Result          *PipelineResult `json:"result,omitempty"`
	ErrorDetail     string          `json:"error,omitempty"`
}

// Clone returns a copy that shares no mutable state with j.
func (j Job) Clone() Job {
	c := j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	c.Result = j.Result.Clone()
	return c
}

// Pipeline stage names, reported on the job record and used as metric labels.
const (
	StageProbe      = "probe"
	StagePlan       = "plan"
	StageThumbnails = "thumbnails"
	StagePreview    = "preview"
	StageVariants   = "variants"
	StageManifest   = "manifest"
)

// AllStages lists the stages in execution order.
var AllStages = []string{StageProbe, StagePlan, StageThumbnails, StagePreview, StageVariants, StageManifest}
