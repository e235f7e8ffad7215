package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/manifest"
	"media-pipeline/internal/media"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/models"
	"media-pipeline/internal/planner"
	"media-pipeline/internal/transcoder"
)

const (
	// ThumbnailDir and PreviewName are relative to the job's output directory.
	ThumbnailDir = "thumbnails"
	PreviewName  = "preview.mp4"

	probeDone = 5.0
	planDone  = 10.0
)

// Inspector probes a source.
type Inspector interface {
	Probe(ctx context.Context, input string) (*models.MediaProbe, error)
}

// Encoder runs the ffmpeg-backed operations. *transcoder.Transcoder
// implements it.
type Encoder interface {
	ExtractThumbnails(ctx context.Context, input, outDir string, count int, duration float64,
		opts media.ThumbnailOptions) ([]string, error)
	GeneratePreview(ctx context.Context, input, output string, variant models.VariantSpec,
		sourceDuration, clipSeconds float64, watermark string, onProgress transcoder.ProgressFunc) error
	BuildSegmentedOutput(ctx context.Context, input, outDir string, variant models.VariantSpec,
		totalDuration float64, watermark string, onProgress transcoder.ProgressFunc) (models.TranscodeResult, error)
}

// ReportFunc receives the current stage and overall job progress.
type ReportFunc func(stage string, percent float64)

// Config holds the encoding defaults shared by every job.
type Config struct {
	Preset         string
	SegmentSeconds int
	Thumbnail      media.ThumbnailOptions
}

// Processor executes jobs.
type Processor struct {
	inspector Inspector
	encoder   Encoder
	planner   *planner.Planner
	thumbnail media.ThumbnailOptions
}

// New creates a Processor.
func New(inspector Inspector, encoder Encoder, cfg Config) *Processor {
	return &Processor{
		inspector: inspector,
		encoder:   encoder,
		planner:   planner.New(cfg.Preset, cfg.SegmentSeconds),
		thumbnail: cfg.Thumbnail,
	}
}

// Process runs every stage for job. The returned result is non-nil whenever
// probing succeeded, including when err is set, so callers can keep what
// was produced.
func (p *Processor) Process(ctx context.Context, job models.Job, report ReportFunc) (*models.PipelineResult, error) {
	if report == nil {
		report = func(string, float64) {}
	}
	log := logging.For("job", job.ID)
	opts := job.Options.WithDefaults()

	if err := transcoder.ValidateInput(job.Input); err != nil {
		return nil, err
	}
	if err := transcoder.ValidateWatermark(opts.Watermark); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Probe
	report(models.StageProbe, 0)
	start := time.Now()
	probe, err := p.inspector.Probe(ctx, job.Input)
	observeStage(models.StageProbe, start, err)
	if err != nil {
		return nil, fmt.Errorf("probe failed: %w", err)
	}
	log.Info("Probed %dx%d, %.2fs, %.3f fps, video=%s audio=%s",
		probe.Width, probe.Height, probe.DurationSeconds, probe.Framerate, probe.VideoCodec, orNone(probe.AudioCodec))
	report(models.StageProbe, probeDone)

	result := &models.PipelineResult{Probe: probe}

	// Plan
	start = time.Now()
	variants := p.plan(probe)
	observeStage(models.StagePlan, start, nil)
	log.Info("Planned %d variant(s): %s", len(variants), variantNames(variants))
	report(models.StagePlan, planDone)

	progress := newStageProgress(planDone, stageCount(opts, len(variants)))

	// Thumbnails
	if opts.ThumbnailCount > 0 {
		report(models.StageThumbnails, progress.at(0))
		thumbOpts := p.thumbnail
		thumbOpts.Watermark = opts.Watermark

		start = time.Now()
		paths, err := p.encoder.ExtractThumbnails(ctx, job.Input, filepath.Join(job.OutputDir, ThumbnailDir),
			opts.ThumbnailCount, probe.DurationSeconds, thumbOpts)
		observeStage(models.StageThumbnails, start, err)
		if err != nil {
			if fatal(ctx, err) {
				return result, fmt.Errorf("thumbnails failed: %w", err)
			}
			log.Warn("Thumbnail extraction failed: %v", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("thumbnails: %v", err))
		} else {
			result.Thumbnails = paths
		}
		progress.next()
		report(models.StageThumbnails, progress.at(0))
	}

	// Preview
	if opts.GeneratePreview {
		report(models.StagePreview, progress.at(0))
		output := filepath.Join(job.OutputDir, PreviewName)

		start = time.Now()
		err := p.encoder.GeneratePreview(ctx, job.Input, output, variants[0], probe.DurationSeconds,
			opts.PreviewDurationSeconds, opts.Watermark, func(pct float64) {
				report(models.StagePreview, progress.at(pct))
			})
		observeStage(models.StagePreview, start, err)
		if err != nil {
			if fatal(ctx, err) {
				return result, fmt.Errorf("preview failed: %w", err)
			}
			log.Warn("Preview generation failed: %v", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("preview: %v", err))
		} else {
			result.PreviewPath = output
		}
		progress.next()
		report(models.StagePreview, progress.at(0))
	}

	// Variants
	start = time.Now()
	var variantErr error
	for _, v := range variants {
		report(models.StageVariants, progress.at(0))
		log.Info("Encoding %s (%s, %dk)", v.Name, v.Resolution(), v.TargetBitrateKbps)

		res, err := p.encoder.BuildSegmentedOutput(ctx, job.Input, job.OutputDir, v, probe.DurationSeconds,
			opts.Watermark, func(pct float64) {
				report(models.StageVariants, progress.at(pct))
			})
		if res.Name == "" {
			res.Variant, res.Name = v, v.Name
		}
		if err != nil {
			res.Success = false
			if res.Error == "" {
				res.Error = err.Error()
			}
			result.Variants = append(result.Variants, res)
			if fatal(ctx, err) {
				observeStage(models.StageVariants, start, err)
				return result, fmt.Errorf("variant %s failed: %w", v.Name, err)
			}
			log.Warn("Variant %s failed: %v", v.Name, err)
			variantErr = err
		} else {
			result.Variants = append(result.Variants, res)
		}
		progress.next()
	}
	if result.SucceededVariants() == 0 {
		observeStage(models.StageVariants, start, variantErr)
	} else {
		observeStage(models.StageVariants, start, nil)
	}

	// Manifest
	report(models.StageManifest, progress.at(0))
	start = time.Now()
	path, err := manifest.Build(job.OutputDir, result.Variants)
	observeStage(models.StageManifest, start, err)
	if err != nil {
		return result, fmt.Errorf("manifest failed: %w", err)
	}
	result.ManifestPath = path
	report(models.StageManifest, 100)

	log.Info("Completed: %d/%d variant(s), %d thumbnail(s), %d warning(s)",
		result.SucceededVariants(), len(result.Variants), len(result.Thumbnails), len(result.Warnings))
	return result, nil
}

// plan derives the variants for probe and adapts them to the source.
func (p *Processor) plan(probe *models.MediaProbe) []models.VariantSpec {
	variants := p.planner.Plan(probe.Width, probe.Height, probe.DurationSeconds)
	for i := range variants {
		variants[i] = variants[i].CapFrameRate(probe.Framerate)
		if !probe.HasAudio() {
			variants[i].AudioBitrateKbps = 0
		}
	}
	return variants
}

// fatal reports whether err must end the job rather than be recorded.
func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var unavailable *ffmpeg.ToolUnavailableError
	return errors.As(err, &unavailable)
}

func observeStage(stage string, start time.Time, err error) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues(stage).Inc()
	}
}

func stageCount(opts models.JobOptions, variants int) int {
	n := variants + 1 // manifest
	if opts.ThumbnailCount > 0 {
		n++
	}
	if opts.GeneratePreview {
		n++
	}
	return n
}

// stageProgress spreads the range (base, 100] evenly over n stages.
type stageProgress struct {
	base  float64
	slice float64
	done  int
}

func newStageProgress(base float64, n int) *stageProgress {
	return &stageProgress{base: base, slice: (100 - base) / float64(n)}
}

// at maps pct of the current stage to overall progress.
func (s *stageProgress) at(pct float64) float64 {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return s.base + s.slice*(float64(s.done)+pct/100)
}

func (s *stageProgress) next() {
	s.done++
}

func variantNames(variants []models.VariantSpec) string {
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.Name
	}
	return strings.Join(names, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
