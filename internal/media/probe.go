package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/models"
)

// ErrNoVideoStream is wrapped by ProbeError when the source has no usable
// video stream. Cover art (attached pictures) does not count.
var ErrNoVideoStream = errors.New("no video stream")

// ProbeError reports a source that could not be inspected.
type ProbeError struct {
	Input string
	Err   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Input, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Inspector extracts stream metadata with ffprobe.
type Inspector struct {
	runner ffmpeg.Runner
}

// NewInspector returns an Inspector that runs ffprobe through runner.
func NewInspector(runner ffmpeg.Runner) *Inspector {
	return &Inspector{runner: runner}
}

// Probe inspects input and returns its duration, dimensions, bitrate,
// frame rate, container and codecs. A missing ffprobe binary is returned
// as *ffmpeg.ToolUnavailableError; every other failure as *ProbeError.
func (i *Inspector) Probe(ctx context.Context, input string) (*models.MediaProbe, error) {
	out, err := i.runner.Run(ctx, ffmpeg.Invocation{
		Tool: ffmpeg.FFprobe,
		Args: []string{
			"-v", "error",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			input,
		},
		CaptureStdout: true,
	})
	if err != nil {
		var unavailable *ffmpeg.ToolUnavailableError
		if errors.As(err, &unavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &ProbeError{Input: input, Err: err}
	}

	probe, err := ParseProbeJSON(out.Stdout)
	if err != nil {
		return nil, &ProbeError{Input: input, Err: err}
	}

	logging.Debug("Probed %s: %dx%d %.2fs %s/%s %.3ffps %dbps",
		input, probe.Width, probe.Height, probe.DurationSeconds,
		probe.VideoCodec, probe.AudioCodec, probe.Framerate, probe.BitrateBps)

	return probe, nil
}

// ParseProbeJSON converts raw ffprobe JSON output into a MediaProbe.
// Exported for testing without a real ffprobe binary.
func ParseProbeJSON(data []byte) (*models.MediaProbe, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	var video, audio *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil && s.Disposition["attached_pic"] != 1 {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video == nil {
		return nil, ErrNoVideoStream
	}

	probe := &models.MediaProbe{
		DurationSeconds: parseFloat(raw.Format.Duration),
		Width:           video.Width,
		Height:          video.Height,
		BitrateBps:      parseInt64(raw.Format.BitRate),
		Framerate:       parseRate(video.AvgFrameRate),
		ContainerFormat: primaryFormatName(raw.Format.FormatName),
		VideoCodec:      video.CodecName,
	}

	if probe.DurationSeconds <= 0 {
		probe.DurationSeconds = parseFloat(video.Duration)
	}
	if probe.BitrateBps <= 0 {
		probe.BitrateBps = parseInt64(video.BitRate)
	}
	if probe.Framerate <= 0 {
		probe.Framerate = parseRate(video.RFrameRate)
	}
	if audio != nil {
		probe.AudioCodec = audio.CodecName
	}

	// Phones record portrait video as landscape frames plus a rotation.
	if isQuarterTurn(video.rotation()) {
		probe.Width, probe.Height = probe.Height, probe.Width
	}

	return probe, nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Duration     string            `json:"duration"`
	BitRate      string            `json:"bit_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	Disposition  map[string]int    `json:"disposition"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		Rotation json.Number `json:"rotation"`
	} `json:"side_data_list"`
}

func (s *ffprobeStream) rotation() int {
	for _, sd := range s.SideDataList {
		if sd.Rotation != "" {
			if f, err := sd.Rotation.Float64(); err == nil {
				return int(f)
			}
		}
	}
	if r, err := strconv.Atoi(strings.TrimSpace(s.Tags["rotate"])); err == nil {
		return r
	}
	return 0
}

func isQuarterTurn(deg int) bool {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg == 90 || deg == 270
}

// primaryFormatName returns the first name of a demuxer list such as
// "mov,mp4,m4a,3gp,3g2,mj2".
func primaryFormatName(s string) string {
	name, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(name)
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// parseRate parses "30000/1001" or "25". "0/0" yields 0.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		return parseFloat(num)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}
