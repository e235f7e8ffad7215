package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/media"
	"media-pipeline/internal/metrics"
)

// ErrNoThumbnailTimestamps is returned when count or duration leave no
// valid timestamp inside the source.
var ErrNoThumbnailTimestamps = errors.New("no thumbnail timestamps")

// ThumbnailTimestamps returns count timestamps evenly spaced strictly inside
// (0, duration): duration/(count+1)*i for i = 1..count.
func ThumbnailTimestamps(count int, duration float64) []float64 {
	if count <= 0 || duration <= 0 {
		return nil
	}
	step := duration / float64(count+1)
	out := make([]float64, count)
	for i := range out {
		out[i] = step * float64(i+1)
	}
	return out
}

// ThumbnailName returns the file name of the i-th (1-based) thumbnail.
func ThumbnailName(i int) string {
	return fmt.Sprintf("thumb_%03d.jpg", i)
}

// ExtractThumbnails grabs one frame per timestamp and writes it as a JPEG
// into outDir. Any failure fails the whole step and removes the files
// already written, so callers never see a partial set.
func (t *Transcoder) ExtractThumbnails(ctx context.Context, input, outDir string, count int, duration float64,
	opts media.ThumbnailOptions) ([]string, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}
	if err := ValidateWatermark(opts.Watermark); err != nil {
		return nil, err
	}

	timestamps := ThumbnailTimestamps(count, duration)
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("%w: count=%d duration=%.3f", ErrNoThumbnailTimestamps, count, duration)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	paths := make([]string, 0, len(timestamps))
	cleanup := func() {
		for _, p := range paths {
			_ = os.Remove(p)
		}
	}

	for i, ts := range timestamps {
		out, err := t.runner.Run(ctx, ffmpeg.Invocation{
			Tool:          ffmpeg.FFmpeg,
			Args:          frameArgs(input, ts),
			CaptureStdout: true,
		})
		if err != nil {
			metrics.ThumbnailsGeneratedTotal.WithLabelValues("error").Inc()
			cleanup()
			return nil, fmt.Errorf("thumbnail %d at %.3fs: %w", i+1, ts, err)
		}

		dest := filepath.Join(outDir, ThumbnailName(i+1))
		if err := media.RenderThumbnail(out.Stdout, dest, opts); err != nil {
			metrics.ThumbnailsGeneratedTotal.WithLabelValues("error").Inc()
			cleanup()
			return nil, fmt.Errorf("thumbnail %d at %.3fs: %w", i+1, ts, err)
		}

		metrics.ThumbnailsGeneratedTotal.WithLabelValues("success").Inc()
		paths = append(paths, dest)
	}

	return paths, nil
}

// frameArgs seeks before opening the input so only one frame is decoded.
func frameArgs(input string, ts float64) []string {
	return []string{
		"-hide_banner", "-nostdin",
		"-v", "error",
		"-ss", formatSeconds(ts),
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"-",
	}
}
