package transcoder

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"media-pipeline/internal/models"
)

var (
	// ErrUnsupportedInput rejects sources that are neither a local path nor
	// an http(s) URL, or that could be read as an option.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrInvalidWatermark rejects text that cannot be placed in a filter
	// graph verbatim.
	ErrInvalidWatermark = errors.New("invalid watermark")

	// ErrInvalidOptions covers every other argument that fails validation.
	ErrInvalidOptions = errors.New("invalid transcode options")
)

// Container selects the output muxer.
type Container string

const (
	ContainerMP4 Container = "mp4"
	ContainerHLS Container = "hls"
)

var encoders = map[string]string{
	"h264": "libx264",
	"hevc": "libx265",
}

var (
	watermarkPattern = regexp.MustCompile(`^[A-Za-z0-9 .,_@#&()+-]{1,64}$`)
	tokenPattern     = regexp.MustCompile(`^[A-Za-z0-9.]{1,16}$`)
	namePattern      = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
	schemePattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]+:`)
	fontPathPattern  = regexp.MustCompile(`^[A-Za-z0-9/._ -]{1,255}$`)
)

// Options describes a single encode. Every field becomes its own argv entry
// or a validated fragment of one.
type Options struct {
	VideoCodec       string
	Width            int
	Height           int
	BitrateKbps      int
	MaxrateKbps      int
	BufsizeKb        int
	FPS              float64
	Preset           string
	Profile          string
	Level            string
	AudioBitrateKbps int

	StartSeconds    float64
	DurationSeconds float64

	Container      Container
	SegmentSeconds int
	SegmentPattern string

	Watermark string
	// FontFile is passed to drawtext; empty leaves font lookup to fontconfig.
	FontFile string

	// TotalDuration is the expected output length, used for progress.
	TotalDuration float64
}

// OptionsForVariant maps a planned rendition onto encoder options.
func OptionsForVariant(v models.VariantSpec) Options {
	return Options{
		VideoCodec:       v.Codec,
		Width:            v.Width,
		Height:           v.Height,
		BitrateKbps:      v.TargetBitrateKbps,
		MaxrateKbps:      v.MaxrateKbps,
		BufsizeKb:        v.BufsizeKb,
		FPS:              v.FPS,
		Preset:           v.Preset,
		Profile:          v.Profile,
		Level:            v.Level,
		AudioBitrateKbps: v.AudioBitrateKbps,
		SegmentSeconds:   v.SegmentSeconds,
	}
}

// ValidateInput accepts a local path or an http(s) URL.
func ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: empty", ErrUnsupportedInput)
	}
	if strings.HasPrefix(input, "-") {
		return fmt.Errorf("%w: %q looks like an option", ErrUnsupportedInput, input)
	}
	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedInput, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: scheme %q", ErrUnsupportedInput, u.Scheme)
		}
		return nil
	}
	// FFmpeg treats "name:" prefixes as protocols (concat:, pipe:, file:...).
	if schemePattern.MatchString(input) {
		return fmt.Errorf("%w: protocol prefix in %q", ErrUnsupportedInput, input)
	}
	return nil
}

// ValidateWatermark checks that text is safe to embed in a drawtext filter.
// The empty string means no watermark.
func ValidateWatermark(text string) error {
	if text == "" {
		return nil
	}
	if !watermarkPattern.MatchString(text) {
		return fmt.Errorf("%w: only letters, digits, spaces and .,_@#&()+- are allowed, up to 64 characters", ErrInvalidWatermark)
	}
	return nil
}

func validateOutput(output string) error {
	if output == "" || strings.HasPrefix(output, "-") {
		return fmt.Errorf("%w: output %q", ErrInvalidOptions, output)
	}
	return nil
}

func (o Options) validate() error {
	if _, ok := encoders[o.VideoCodec]; !ok {
		return fmt.Errorf("%w: codec %q", ErrInvalidOptions, o.VideoCodec)
	}
	if o.Width <= 0 || o.Height <= 0 || o.Width%2 != 0 || o.Height%2 != 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidOptions, o.Width, o.Height)
	}
	if o.BitrateKbps <= 0 || o.MaxrateKbps < 0 || o.BufsizeKb < 0 || o.AudioBitrateKbps < 0 {
		return fmt.Errorf("%w: bitrates", ErrInvalidOptions)
	}
	if o.FPS < 0 || o.StartSeconds < 0 || o.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative timing", ErrInvalidOptions)
	}
	for _, tok := range []string{o.Preset, o.Profile, o.Level} {
		if tok != "" && !tokenPattern.MatchString(tok) {
			return fmt.Errorf("%w: %q", ErrInvalidOptions, tok)
		}
	}
	switch o.Container {
	case ContainerMP4:
	case ContainerHLS:
		if o.SegmentSeconds <= 0 {
			return fmt.Errorf("%w: segment length %d", ErrInvalidOptions, o.SegmentSeconds)
		}
		if err := validateOutput(o.SegmentPattern); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: container %q", ErrInvalidOptions, o.Container)
	}
	if o.FontFile != "" && !fontPathPattern.MatchString(o.FontFile) {
		return fmt.Errorf("%w: font file %q", ErrInvalidOptions, o.FontFile)
	}
	return ValidateWatermark(o.Watermark)
}

// BuildArgs returns the ffmpeg argv for encoding input into output.
func BuildArgs(input, output string, o Options) ([]string, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}
	if err := validateOutput(output); err != nil {
		return nil, err
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-v", "error",
		"-progress", "pipe:1", "-nostats",
	}

	if o.StartSeconds > 0 {
		args = append(args, "-ss", formatSeconds(o.StartSeconds))
	}
	args = append(args, "-i", input)
	if o.DurationSeconds > 0 {
		args = append(args, "-t", formatSeconds(o.DurationSeconds))
	}

	args = append(args, "-map", "0:v:0")
	if o.AudioBitrateKbps > 0 {
		args = append(args, "-map", "0:a:0?")
	}

	args = append(args, "-c:v", encoders[o.VideoCodec])
	if o.Preset != "" {
		args = append(args, "-preset", o.Preset)
	}
	if o.Profile != "" {
		args = append(args, "-profile:v", o.Profile)
	}
	if o.Level != "" {
		args = append(args, "-level:v", o.Level)
	}

	args = append(args, "-b:v", kbps(o.BitrateKbps))
	if o.MaxrateKbps > 0 {
		args = append(args, "-maxrate", kbps(o.MaxrateKbps))
	}
	if o.BufsizeKb > 0 {
		args = append(args, "-bufsize", kbps(o.BufsizeKb))
	}

	args = append(args, "-vf", videoFilter(o))
	if o.FPS > 0 {
		args = append(args, "-r", strconv.FormatFloat(o.FPS, 'f', -1, 64))
	}
	args = append(args, "-pix_fmt", "yuv420p")

	if o.AudioBitrateKbps > 0 {
		args = append(args, "-c:a", "aac", "-b:a", kbps(o.AudioBitrateKbps), "-ac", "2")
	} else {
		args = append(args, "-an")
	}

	switch o.Container {
	case ContainerHLS:
		seg := strconv.Itoa(o.SegmentSeconds)
		args = append(args,
			"-force_key_frames", "expr:gte(t,n_forced*"+seg+")",
			"-sc_threshold", "0",
			"-f", "hls",
			"-hls_time", seg,
			"-hls_playlist_type", "vod",
			"-hls_flags", "independent_segments",
			"-hls_segment_filename", o.SegmentPattern,
		)
	case ContainerMP4:
		args = append(args, "-movflags", "+faststart", "-f", "mp4")
	}

	return append(args, output), nil
}

// videoFilter scales into the target box, pads to the exact size so the
// aspect ratio survives, and stamps the watermark last.
func videoFilter(o Options) string {
	w, h := strconv.Itoa(o.Width), strconv.Itoa(o.Height)
	filters := []string{
		"scale=" + w + ":" + h + ":force_original_aspect_ratio=decrease",
		"pad=" + w + ":" + h + ":(ow-iw)/2:(oh-ih)/2",
		"setsar=1",
	}
	if o.Watermark != "" {
		size := max(12, o.Height/24)
		font := ""
		if o.FontFile != "" {
			font = "fontfile='" + o.FontFile + "':"
		}
		filters = append(filters, fmt.Sprintf(
			"drawtext=%stext='%s':fontcolor=white@0.8:fontsize=%d:box=1:boxcolor=black@0.4:boxborderw=4:x=w-tw-10:y=h-th-10",
			font, o.Watermark, size))
	}
	return strings.Join(filters, ",")
}

func kbps(n int) string {
	return strconv.Itoa(n) + "k"
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
