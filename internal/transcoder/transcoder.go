package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/models"
)

const (
	// PlaylistName is the sub-manifest written into each variant directory.
	PlaylistName = "index.m3u8"

	segmentPattern = "segment_%03d.ts"

	// previewStartFraction places the preview clip past opening titles.
	previewStartFraction = 0.1
)

// ErrIncompletePlaylist means ffmpeg exited cleanly but the sub-manifest is
// missing or lacks its end marker.
var ErrIncompletePlaylist = errors.New("incomplete playlist")

// ProgressFunc receives monotonic 0-100 progress for one operation.
type ProgressFunc func(percent float64)

// Transcoder builds ffmpeg invocations for each pipeline operation and runs
// them one at a time through a Runner.
type Transcoder struct {
	runner   ffmpeg.Runner
	parser   ffmpeg.ProgressParser
	fontFile string
}

// New creates a Transcoder. A nil parser reads "-progress pipe:1" output.
func New(runner ffmpeg.Runner, parser ffmpeg.ProgressParser) *Transcoder {
	if parser == nil {
		parser = ffmpeg.OutTimeParser{}
	}
	return &Transcoder{runner: runner, parser: parser}
}

// SetFontFile sets the font drawtext uses for video watermarks. Without it
// ffmpeg must be built with fontconfig to draw watermarks at all.
func (t *Transcoder) SetFontFile(path string) {
	t.fontFile = path
}

// Transcode encodes input into output. It returns *ffmpeg.EncodeError when
// ffmpeg exits non-zero and *ffmpeg.ToolUnavailableError when ffmpeg cannot
// be run. onProgress may be nil.
func (t *Transcoder) Transcode(ctx context.Context, input, output string, opts Options, onProgress ProgressFunc) error {
	args, err := BuildArgs(input, output, opts)
	if err != nil {
		return err
	}

	total := opts.TotalDuration
	if opts.DurationSeconds > 0 && (total <= 0 || opts.DurationSeconds < total) {
		total = opts.DurationSeconds
	}
	tracker := ffmpeg.NewProgressTracker(total, t.parser, onProgress)

	if _, err := t.runner.Run(ctx, ffmpeg.Invocation{
		Tool:         ffmpeg.FFmpeg,
		Args:         args,
		OnStdoutLine: tracker.Line,
	}); err != nil {
		return err
	}

	tracker.Complete()
	return nil
}

// BuildSegmentedOutput encodes one HLS rendition into outDir/<variant.Name>.
// The returned result is always populated; Success is set only when the
// sub-manifest exists and is complete.
func (t *Transcoder) BuildSegmentedOutput(ctx context.Context, input, outDir string, variant models.VariantSpec,
	totalDuration float64, watermark string, onProgress ProgressFunc) (models.TranscodeResult, error) {
	result := models.TranscodeResult{
		Variant: variant,
		Name:    variant.Name,
	}

	fail := func(err error) (models.TranscodeResult, error) {
		result.Error = err.Error()
		metrics.VariantsEncodedTotal.WithLabelValues(variant.Name, "error").Inc()
		return result, err
	}

	if !namePattern.MatchString(variant.Name) {
		return fail(fmt.Errorf("%w: variant name %q", ErrInvalidOptions, variant.Name))
	}

	dir := filepath.Join(outDir, variant.Name)
	result.OutputDir = dir
	result.PlaylistPath = filepath.Join(dir, PlaylistName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create variant directory: %w", err))
	}

	opts := OptionsForVariant(variant)
	opts.Container = ContainerHLS
	opts.SegmentPattern = filepath.Join(dir, segmentPattern)
	opts.Watermark = watermark
	opts.FontFile = t.fontFile
	opts.TotalDuration = totalDuration

	if err := t.Transcode(ctx, input, result.PlaylistPath, opts, onProgress); err != nil {
		return fail(err)
	}

	if err := checkPlaylistComplete(result.PlaylistPath); err != nil {
		return fail(err)
	}

	result.Success = true
	metrics.VariantsEncodedTotal.WithLabelValues(variant.Name, "success").Inc()
	logging.Debug("Variant %s written to %s", variant.Name, dir)
	return result, nil
}

// GeneratePreview encodes a short MP4 clip starting a tenth of the way into
// the source, at the given variant's size and bitrate.
func (t *Transcoder) GeneratePreview(ctx context.Context, input, output string, variant models.VariantSpec,
	sourceDuration, clipSeconds float64, watermark string, onProgress ProgressFunc) error {
	start, length := previewWindow(sourceDuration, clipSeconds)

	opts := OptionsForVariant(variant)
	opts.Container = ContainerMP4
	opts.StartSeconds = start
	opts.DurationSeconds = length
	opts.TotalDuration = length
	opts.Watermark = watermark
	opts.FontFile = t.fontFile

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("failed to create preview directory: %w", err)
	}
	if err := t.Transcode(ctx, input, output, opts, onProgress); err != nil {
		_ = os.Remove(output)
		return err
	}
	return nil
}

// previewWindow returns the clip start and length. With an unknown source
// duration the clip starts at zero and ffmpeg stops at the end of input.
func previewWindow(sourceDuration, clipSeconds float64) (start, length float64) {
	length = clipSeconds
	if sourceDuration <= 0 {
		return 0, length
	}
	if length <= 0 || length > sourceDuration {
		length = sourceDuration
	}
	start = sourceDuration * previewStartFraction
	if start+length > sourceDuration {
		start = sourceDuration - length
	}
	return start, length
}

func checkPlaylistComplete(path string) error {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIncompletePlaylist, err)
	}
	if !bytes.Contains(data, []byte("#EXT-X-ENDLIST")) {
		return fmt.Errorf("%w: %s has no #EXT-X-ENDLIST", ErrIncompletePlaylist, filepath.Base(path))
	}
	return nil
}
