package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"time"

	// Frame decoders
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/metrics"
)

const (
	// DefaultThumbnailWidth and DefaultThumbnailHeight bound the rendered
	// thumbnail; aspect ratio is preserved.
	DefaultThumbnailWidth  = 320
	DefaultThumbnailHeight = 180

	defaultJPEGQuality = 80
	watermarkPadding   = 4
)

// ThumbnailOptions controls how an extracted frame is rendered.
type ThumbnailOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	Watermark string
}

func (o ThumbnailOptions) withDefaults() ThumbnailOptions {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultThumbnailWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultThumbnailHeight
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = defaultJPEGQuality
	}
	return o
}

// RenderThumbnail decodes a single frame (PNG or JPEG), fits it into the
// configured box, stamps the watermark if any, and writes a JPEG to dest.
// The file is written through a temporary name so a failed render never
// leaves a truncated image behind.
func RenderThumbnail(frame []byte, dest string, opts ThumbnailOptions) error {
	start := time.Now()
	opts = opts.withDefaults()

	if len(frame) == 0 {
		return fmt.Errorf("empty frame for %s", filepath.Base(dest))
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}

	thumb := imaging.Fit(img, opts.MaxWidth, opts.MaxHeight, imaging.Lanczos)
	if opts.Watermark != "" {
		thumb = stampWatermark(thumb, opts.Watermark)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	if err := filesystem.WriteFileAtomic(dest, buf.Bytes(), 0o644); err != nil {
		return err
	}

	metrics.ThumbnailRenderDuration.Observe(time.Since(start).Seconds())
	return nil
}

// stampWatermark draws text in the bottom-right corner over a translucent
// backing box.
func stampWatermark(src *image.NRGBA, text string) *image.NRGBA {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Face: face}
	textWidth := drawer.MeasureString(text).Ceil()
	fm := face.Metrics()
	textHeight := (fm.Ascent + fm.Descent).Ceil()

	bounds := src.Bounds()
	boxW := textWidth + 2*watermarkPadding
	boxH := textHeight + 2*watermarkPadding
	if boxW > bounds.Dx() || boxH > bounds.Dy() {
		return src
	}

	out := imaging.Clone(src)
	box := image.Rect(bounds.Max.X-boxW, bounds.Max.Y-boxH, bounds.Max.X, bounds.Max.Y)
	draw.Draw(out, box, image.NewUniform(color.NRGBA{A: 128}), image.Point{}, draw.Over)

	drawer.Dst = out
	drawer.Src = image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 220})
	drawer.Dot = fixed.Point26_6{
		X: fixed.I(box.Min.X + watermarkPadding),
		Y: fixed.I(box.Min.Y+watermarkPadding) + fm.Ascent,
	}
	drawer.DrawString(text)

	return out
}
