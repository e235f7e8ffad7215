package manifest

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"media-pipeline/internal/filesystem"
	"media-pipeline/internal/models"
)

const (
	// MasterName is the file name of the master playlist inside the job's
	// output directory.
	MasterName = "master.m3u8"

	variantPlaylist = "index.m3u8"
	audioCodec      = "mp4a.40.2"
)

// ManifestError is returned when no variant succeeded, leaving nothing to
// reference.
type ManifestError struct {
	Attempted int
	Failures  []string
}

func (e *ManifestError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("no successful variants (attempted %d)", e.Attempted)
	}
	return fmt.Sprintf("no successful variants (attempted %d): %s", e.Attempted, strings.Join(e.Failures, "; "))
}

// Build renders the master playlist for variants and writes it to
// outDir/master.m3u8, returning the written path.
func Build(outDir string, variants []models.TranscodeResult) (string, error) {
	data, err := Render(variants)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(outDir, MasterName)
	if err := filesystem.WriteFileAtomic(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write master playlist: %w", err)
	}
	return dest, nil
}

// Render returns the master playlist bytes without touching the filesystem.
func Render(variants []models.TranscodeResult) ([]byte, error) {
	ok := make([]models.TranscodeResult, 0, len(variants))
	var failures []string
	for _, v := range variants {
		if v.Success {
			ok = append(ok, v)
			continue
		}
		msg := v.Error
		if msg == "" {
			msg = "unknown error"
		}
		failures = append(failures, fmt.Sprintf("%s: %s", v.Name, msg))
	}
	if len(ok) == 0 {
		return nil, &ManifestError{Attempted: len(variants), Failures: failures}
	}

	sort.SliceStable(ok, func(i, j int) bool {
		a, b := ok[i].Variant, ok[j].Variant
		if a.BandwidthBps() != b.BandwidthBps() {
			return a.BandwidthBps() < b.BandwidthBps()
		}
		if a.Height != b.Height {
			return a.Height < b.Height
		}
		return name(ok[i]) < name(ok[j])
	})

	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	buf.WriteString("#EXT-X-VERSION:3\n")
	buf.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	for _, r := range ok {
		buf.WriteString(streamInf(r))
		buf.WriteByte('\n')
		buf.WriteString(path.Join(name(r), variantPlaylist))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func name(r models.TranscodeResult) string {
	if r.Name != "" {
		return r.Name
	}
	return r.Variant.Name
}

func streamInf(r models.TranscodeResult) string {
	v := r.Variant
	attrs := []string{
		"BANDWIDTH=" + strconv.Itoa(v.BandwidthBps()),
		"AVERAGE-BANDWIDTH=" + strconv.Itoa(v.AverageBandwidthBps()),
		"RESOLUTION=" + v.Resolution(),
	}
	if v.FPS > 0 {
		attrs = append(attrs, "FRAME-RATE="+strconv.FormatFloat(v.FPS, 'f', 3, 64))
	}
	if codecs := Codecs(v); codecs != "" {
		attrs = append(attrs, `CODECS="`+codecs+`"`)
	}
	attrs = append(attrs, `NAME="`+name(r)+`"`)
	return "#EXT-X-STREAM-INF:" + strings.Join(attrs, ",")
}

// Codecs returns the RFC 6381 codec string for a variant, or "" when the
// video codec is not recognised.
func Codecs(v models.VariantSpec) string {
	var video string
	switch v.Codec {
	case "", "h264":
		video = avcCodec(v.Profile, v.Level)
	case "hevc":
		video = hevcCodec(v.Level)
	default:
		return ""
	}
	if v.AudioBitrateKbps > 0 {
		return video + "," + audioCodec
	}
	return video
}

// avcCodec encodes profile_idc, constraint flags and level_idc as hex.
func avcCodec(profile, level string) string {
	var profileIdc, constraints int
	switch profile {
	case "baseline":
		profileIdc, constraints = 0x42, 0xE0
	case "high":
		profileIdc, constraints = 0x64, 0x00
	default:
		profileIdc, constraints = 0x4D, 0x40
	}
	return fmt.Sprintf("avc1.%02X%02X%02X", profileIdc, constraints, levelIdc(level, 10))
}

func hevcCodec(level string) string {
	return fmt.Sprintf("hvc1.1.6.L%d.90", levelIdc(level, 30))
}

// levelIdc turns "4.1" into 41 (scale 10) or 123 (scale 30). Unparsable
// levels map to 4.0.
func levelIdc(level string, scale float64) int {
	f, err := strconv.ParseFloat(level, 64)
	if err != nil || f <= 0 {
		f = 4.0
	}
	return int(f*scale + 0.5)
}
