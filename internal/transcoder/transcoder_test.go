package transcoder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/media"
)

// fakeRunner stands in for ffmpeg. HLS invocations get a playlist written to
// their output path, frame grabs get a PNG, and progress lines are replayed.
type fakeRunner struct {
	mu    sync.Mutex
	calls []ffmpeg.Invocation

	progress  []string
	err       error
	failAfter int // fail every call after this many successes (0 = never)
	noEndList bool
}

func (f *fakeRunner) Run(_ context.Context, inv ffmpeg.Invocation) (*ffmpeg.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	n := len(f.calls)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.failAfter > 0 && n > f.failAfter {
		return nil, &ffmpeg.EncodeError{Tool: inv.Tool, ExitCode: 1, StderrTail: "Conversion failed!"}
	}

	for _, line := range f.progress {
		if inv.OnStdoutLine != nil {
			inv.OnStdoutLine(line)
		}
	}

	output := inv.Args[len(inv.Args)-1]
	switch {
	case output == "-":
		return &ffmpeg.Outcome{Stdout: testPNG()}, nil
	case strings.HasSuffix(output, ".m3u8"):
		body := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:4.0,\nsegment_000.ts\n"
		if !f.noEndList {
			body += "#EXT-X-ENDLIST\n"
		}
		if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
			return nil, err
		}
	default:
		if err := os.WriteFile(output, []byte("mp4"), 0o644); err != nil {
			return nil, err
		}
	}
	return &ffmpeg.Outcome{}, nil
}

func (f *fakeRunner) invocations() []ffmpeg.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ffmpeg.Invocation(nil), f.calls...)
}

func testPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestThumbnailTimestamps(t *testing.T) {
	got := ThumbnailTimestamps(5, 100)
	want := []float64{16.67, 33.33, 50, 66.67, 83.33}
	if len(got) != len(want) {
		t.Fatalf("ThumbnailTimestamps(5, 100) = %v", got)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 0.01 {
			t.Errorf("timestamp[%d] = %.4f, want %.2f", i, got[i], want[i])
		}
		if got[i] <= 0 || got[i] >= 100 {
			t.Errorf("timestamp[%d] = %v outside (0, 100)", i, got[i])
		}
	}

	for _, tc := range []struct {
		count    int
		duration float64
	}{{0, 100}, {-1, 100}, {5, 0}, {5, -3}} {
		if ts := ThumbnailTimestamps(tc.count, tc.duration); ts != nil {
			t.Errorf("ThumbnailTimestamps(%d, %v) = %v, want nil", tc.count, tc.duration, ts)
		}
	}
}

func TestExtractThumbnails(t *testing.T) {
	runner := &fakeRunner{}
	dir := filepath.Join(t.TempDir(), "thumbnails")

	paths, err := New(runner, nil).ExtractThumbnails(context.Background(), "/media/in.mp4", dir, 3, 60, media.ThumbnailOptions{})
	if err != nil {
		t.Fatalf("ExtractThumbnails() error = %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("got %d paths, want 3", len(paths))
	}
	for i, p := range paths {
		if filepath.Base(p) != ThumbnailName(i+1) {
			t.Errorf("path[%d] = %s", i, p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("thumbnail missing: %v", err)
		}
	}

	calls := runner.invocations()
	wantTS := []string{"15.000", "30.000", "45.000"}
	for i, inv := range calls {
		if got := argValue(inv.Args, "-ss"); got != wantTS[i] {
			t.Errorf("call %d -ss = %s, want %s", i, got, wantTS[i])
		}
		if !inv.CaptureStdout {
			t.Errorf("call %d should capture stdout", i)
		}
	}
}

func TestExtractThumbnailsAllOrNothing(t *testing.T) {
	runner := &fakeRunner{failAfter: 2}
	dir := t.TempDir()

	paths, err := New(runner, nil).ExtractThumbnails(context.Background(), "/media/in.mp4", dir, 4, 100, media.ThumbnailOptions{})
	if err == nil {
		t.Fatal("expected an error when one extraction fails")
	}
	if paths != nil {
		t.Errorf("paths = %v, want nil", paths)
	}
	var encodeErr *ffmpeg.EncodeError
	if !errors.As(err, &encodeErr) {
		t.Errorf("error %v should wrap *ffmpeg.EncodeError", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("partial thumbnails left behind: %d files", len(entries))
	}
}

func TestExtractThumbnailsZeroDuration(t *testing.T) {
	runner := &fakeRunner{}
	_, err := New(runner, nil).ExtractThumbnails(context.Background(), "/media/in.mp4", t.TempDir(), 5, 0, media.ThumbnailOptions{})
	if !errors.Is(err, ErrNoThumbnailTimestamps) {
		t.Fatalf("error = %v, want ErrNoThumbnailTimestamps", err)
	}
	if len(runner.invocations()) != 0 {
		t.Error("ffmpeg should not be invoked")
	}
}

func TestExtractThumbnailsToolUnavailable(t *testing.T) {
	runner := &fakeRunner{err: &ffmpeg.ToolUnavailableError{Tool: ffmpeg.FFmpeg, Err: errors.New("not found")}}
	_, err := New(runner, nil).ExtractThumbnails(context.Background(), "/media/in.mp4", t.TempDir(), 5, 10, media.ThumbnailOptions{})
	var unavailable *ffmpeg.ToolUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v, want *ToolUnavailableError", err)
	}
	if n := len(runner.invocations()); n != 1 {
		t.Errorf("made %d invocations, want to stop after the first", n)
	}
}

func TestBuildSegmentedOutput(t *testing.T) {
	runner := &fakeRunner{progress: []string{"out_time_us=30000000", "out_time_us=60000000", "progress=end"}}
	outDir := t.TempDir()

	var reported []float64
	result, err := New(runner, nil).BuildSegmentedOutput(context.Background(), "/media/in.mp4", outDir,
		variant720(), 120, "", func(p float64) { reported = append(reported, p) })
	if err != nil {
		t.Fatalf("BuildSegmentedOutput() error = %v", err)
	}

	if !result.Success || result.Error != "" {
		t.Errorf("result = %+v, want success", result)
	}
	if result.Name != "720p" || result.OutputDir != filepath.Join(outDir, "720p") {
		t.Errorf("result = %+v", result)
	}
	if result.PlaylistPath != filepath.Join(outDir, "720p", PlaylistName) {
		t.Errorf("PlaylistPath = %s", result.PlaylistPath)
	}

	want := []float64{25, 50, 100}
	if len(reported) != len(want) {
		t.Fatalf("progress = %v, want %v", reported, want)
	}
	for i := range want {
		if reported[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, reported[i], want[i])
		}
	}

	args := runner.invocations()[0].Args
	if got := argValue(args, "-hls_segment_filename"); got != filepath.Join(outDir, "720p", "segment_%03d.ts") {
		t.Errorf("-hls_segment_filename = %s", got)
	}
}

func TestSetFontFile(t *testing.T) {
	runner := &fakeRunner{}
	tr := New(runner, nil)
	tr.SetFontFile("/fonts/a.ttf")

	if _, err := tr.BuildSegmentedOutput(context.Background(), "/media/in.mp4", t.TempDir(),
		variant720(), 120, "example.com", nil); err != nil {
		t.Fatalf("BuildSegmentedOutput() error = %v", err)
	}
	out := filepath.Join(t.TempDir(), "preview.mp4")
	if err := tr.GeneratePreview(context.Background(), "/media/in.mp4", out, variant720(), 120, 10, "example.com", nil); err != nil {
		t.Fatalf("GeneratePreview() error = %v", err)
	}

	for i, inv := range runner.invocations() {
		if vf := argValue(inv.Args, "-vf"); !strings.Contains(vf, "fontfile='/fonts/a.ttf'") {
			t.Errorf("call %d: -vf = %q, want fontfile", i, vf)
		}
	}
}

func TestBuildSegmentedOutputFailures(t *testing.T) {
	t.Run("encode error", func(t *testing.T) {
		runner := &fakeRunner{err: &ffmpeg.EncodeError{Tool: ffmpeg.FFmpeg, ExitCode: 1, StderrTail: "boom"}}
		result, err := New(runner, nil).BuildSegmentedOutput(context.Background(), "/in.mp4", t.TempDir(), variant720(), 10, "", nil)
		var encodeErr *ffmpeg.EncodeError
		if !errors.As(err, &encodeErr) {
			t.Fatalf("error = %v, want *EncodeError", err)
		}
		if result.Success || result.Error == "" || result.Name != "720p" {
			t.Errorf("result = %+v, want recorded failure", result)
		}
	})

	t.Run("playlist without end marker", func(t *testing.T) {
		runner := &fakeRunner{noEndList: true}
		result, err := New(runner, nil).BuildSegmentedOutput(context.Background(), "/in.mp4", t.TempDir(), variant720(), 10, "", nil)
		if !errors.Is(err, ErrIncompletePlaylist) {
			t.Fatalf("error = %v, want ErrIncompletePlaylist", err)
		}
		if result.Success {
			t.Error("incomplete playlist reported as success")
		}
	})

	t.Run("unsafe variant name", func(t *testing.T) {
		v := variant720()
		v.Name = "../escape"
		runner := &fakeRunner{}
		_, err := New(runner, nil).BuildSegmentedOutput(context.Background(), "/in.mp4", t.TempDir(), v, 10, "", nil)
		if !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("error = %v, want ErrInvalidOptions", err)
		}
		if len(runner.invocations()) != 0 {
			t.Error("ffmpeg should not be invoked")
		}
	})

	t.Run("rejected input", func(t *testing.T) {
		runner := &fakeRunner{}
		_, err := New(runner, nil).BuildSegmentedOutput(context.Background(), "concat:a|b", t.TempDir(), variant720(), 10, "", nil)
		if !errors.Is(err, ErrUnsupportedInput) {
			t.Fatalf("error = %v, want ErrUnsupportedInput", err)
		}
	})
}

func TestGeneratePreview(t *testing.T) {
	runner := &fakeRunner{}
	out := filepath.Join(t.TempDir(), "preview.mp4")

	v := variant720()
	v.Name = "360p"
	v.Width, v.Height = 640, 360

	if err := New(runner, nil).GeneratePreview(context.Background(), "/media/in.mp4", out, v, 200, 10, "", nil); err != nil {
		t.Fatalf("GeneratePreview() error = %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("preview missing: %v", err)
	}

	args := runner.invocations()[0].Args
	if got := argValue(args, "-ss"); got != "20.000" {
		t.Errorf("-ss = %s, want 20.000", got)
	}
	if got := argValue(args, "-t"); got != "10.000" {
		t.Errorf("-t = %s, want 10.000", got)
	}
}

func TestPreviewWindow(t *testing.T) {
	tests := []struct {
		name             string
		source, clip     float64
		wantStart, wantL float64
	}{
		{"normal", 200, 10, 20, 10},
		{"clip near end", 12, 10, 1.2, 10},
		{"clip pushed back", 10.5, 10, 0.5, 10},
		{"clip longer than source", 6, 10, 0, 6},
		{"unknown source", 0, 10, 0, 10},
		{"no clip length", 50, 0, 0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, length := previewWindow(tt.source, tt.clip)
			if math.Abs(start-tt.wantStart) > 1e-9 || math.Abs(length-tt.wantL) > 1e-9 {
				t.Errorf("previewWindow(%v, %v) = (%v, %v), want (%v, %v)",
					tt.source, tt.clip, start, length, tt.wantStart, tt.wantL)
			}
		})
	}
}

func TestTranscodeProgressUsesClipLength(t *testing.T) {
	runner := &fakeRunner{progress: []string{"out_time_us=5000000"}}
	opts := OptionsForVariant(variant720())
	opts.Container = ContainerMP4
	opts.DurationSeconds = 10
	opts.TotalDuration = 300

	var first float64
	err := New(runner, nil).Transcode(context.Background(), "/in.mp4", filepath.Join(t.TempDir(), "o.mp4"), opts, func(p float64) {
		if first == 0 {
			first = p
		}
	})
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	if first != 50 {
		t.Errorf("first progress = %v, want 50", first)
	}
}
