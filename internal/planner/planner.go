package planner

import (
	"fmt"
	"math"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/models"
)

const (
	// DefaultPreset is the x264 preset used when none is configured.
	DefaultPreset = "veryfast"

	// DefaultSegmentSeconds is the HLS segment length for normal sources.
	DefaultSegmentSeconds = 4

	// DefaultFPS is the output frame rate before capping at the source rate.
	DefaultFPS = 30

	// Sources shorter than this many segments get half-length segments.
	shortClipSegments = 5

	// Fallback rendition bounds (long side x short side).
	fallbackMaxLong  = 854
	fallbackMaxShort = 480

	fallbackMinKbps = 200
	fallbackMaxKbps = 1200

	maxrateFactor = 1.07
	bufsizeFactor = 1.5
)

// rung is one candidate rendition, expressed in landscape orientation.
type rung struct {
	name      string
	width     int
	height    int
	kbps      int
	audioKbps int
	profile   string
	level     string
}

// ladder is ordered by ascending quality.
var ladder = []rung{
	{"360p", 640, 360, 800, 96, "baseline", "3.0"},
	{"480p", 854, 480, 1200, 96, "main", "3.1"},
	{"720p", 1280, 720, 2500, 128, "main", "4.0"},
	{"1080p", 1920, 1080, 5000, 128, "high", "4.1"},
}

// Planner turns source dimensions into an ordered list of renditions.
type Planner struct {
	Preset         string
	SegmentSeconds int
}

// New returns a Planner with the given encoder preset and segment length.
// Zero values fall back to the package defaults.
func New(preset string, segmentSeconds int) *Planner {
	return &Planner{Preset: preset, SegmentSeconds: segmentSeconds}
}

// PlanVariants plans with the default preset and segment length.
func PlanVariants(width, height int, duration float64) []models.VariantSpec {
	return (&Planner{}).Plan(width, height, duration)
}

// Plan returns the renditions to encode, lowest quality first. A ladder rung
// is included only when the source is at least as large in both dimensions,
// so nothing is ever upscaled. Portrait sources get the same rungs rotated.
// When no rung fits, a single fallback rendition at the source's own size
// (bounded to 854x480) is returned.
func (p *Planner) Plan(width, height int, duration float64) []models.VariantSpec {
	preset := p.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	segment := segmentSeconds(p.SegmentSeconds, duration)
	portrait := height > width

	var variants []models.VariantSpec
	for _, r := range ladder {
		w, h := r.width, r.height
		if portrait {
			w, h = h, w
		}
		if width < w || height < h {
			continue
		}
		variants = append(variants, newVariant(r.name, w, h, r.kbps, r.audioKbps, r.profile, r.level, preset, segment))
	}

	if len(variants) == 0 {
		fb := fallback(width, height, preset, segment)
		logging.Debug("Source %dx%d below smallest rung, using fallback %s (%s)", width, height, fb.Name, fb.Resolution())
		variants = append(variants, fb)
	}

	return variants
}

func newVariant(name string, w, h, kbps, audioKbps int, profile, level, preset string, segment int) models.VariantSpec {
	return models.VariantSpec{
		Name:              name,
		Width:             w,
		Height:            h,
		TargetBitrateKbps: kbps,
		MaxrateKbps:       int(math.Round(float64(kbps) * maxrateFactor)),
		BufsizeKb:         int(math.Round(float64(kbps) * bufsizeFactor)),
		Codec:             "h264",
		Preset:            preset,
		Profile:           profile,
		Level:             level,
		FPS:               DefaultFPS,
		AudioBitrateKbps:  audioKbps,
		SegmentSeconds:    segment,
	}
}

// fallback sizes a single rendition for sources smaller than the ladder.
func fallback(width, height int, preset string, segment int) models.VariantSpec {
	smallest := ladder[0]
	if width <= 0 || height <= 0 {
		return newVariant(smallest.name, smallest.width, smallest.height, smallest.kbps,
			smallest.audioKbps, smallest.profile, smallest.level, preset, segment)
	}

	maxW, maxH := fallbackMaxLong, fallbackMaxShort
	if height > width {
		maxW, maxH = maxH, maxW
	}

	// Shrink to fit the bounds while keeping the aspect ratio.
	w, h := width, height
	if w > maxW || h > maxH {
		if width*maxH >= height*maxW {
			w, h = maxW, height*maxW/width
		} else {
			w, h = width*maxH/height, maxH
		}
	}
	w, h = evenFloor(w), evenFloor(h)

	area := float64(w*h) / float64(smallest.width*smallest.height)
	kbps := int(math.Round(float64(smallest.kbps) * area))
	kbps = min(max(kbps, fallbackMinKbps), fallbackMaxKbps)

	short := min(w, h)
	return newVariant(fmt.Sprintf("%dp", short), w, h, kbps, 64, smallest.profile, smallest.level, preset, segment)
}

// evenFloor rounds down to an even number, never below 2. H.264 with
// 4:2:0 chroma needs even dimensions.
func evenFloor(n int) int {
	n -= n % 2
	if n < 2 {
		return 2
	}
	return n
}

func segmentSeconds(configured int, duration float64) int {
	seg := configured
	if seg <= 0 {
		seg = DefaultSegmentSeconds
	}
	if duration > 0 && duration < float64(seg*shortClipSegments) {
		seg = max(1, seg/2)
	}
	return seg
}
