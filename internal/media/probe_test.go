package media

import (
	"context"
	"errors"
	"math"
	"testing"

	"media-pipeline/internal/ffmpeg"
)

const sampleProbe = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "avg_frame_rate": "30000/1001",
      "r_frame_rate": "30000/1001",
      "bit_rate": "4500000"
    },
    {
      "index": 1,
      "codec_name": "aac",
      "codec_type": "audio",
      "bit_rate": "128000"
    }
  ],
  "format": {
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "120.500000",
    "bit_rate": "4700000"
  }
}`

func TestParseProbeJSON(t *testing.T) {
	probe, err := ParseProbeJSON([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("ParseProbeJSON() error = %v", err)
	}

	if probe.Width != 1920 || probe.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", probe.Width, probe.Height)
	}
	if probe.DurationSeconds != 120.5 {
		t.Errorf("DurationSeconds = %v, want 120.5", probe.DurationSeconds)
	}
	if probe.BitrateBps != 4700000 {
		t.Errorf("BitrateBps = %d, want 4700000", probe.BitrateBps)
	}
	if math.Abs(probe.Framerate-29.97) > 0.01 {
		t.Errorf("Framerate = %v, want ~29.97", probe.Framerate)
	}
	if probe.ContainerFormat != "mov" {
		t.Errorf("ContainerFormat = %q, want mov", probe.ContainerFormat)
	}
	if probe.VideoCodec != "h264" || probe.AudioCodec != "aac" {
		t.Errorf("codecs = %q/%q, want h264/aac", probe.VideoCodec, probe.AudioCodec)
	}
	if !probe.HasAudio() {
		t.Error("HasAudio() = false, want true")
	}
}

func TestParseProbeJSONEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		check   func(t *testing.T, w, h int, dur float64, bps int64, fps float64, audio string)
		wantErr error
	}{
		{
			name: "no audio stream",
			json: `{"streams":[{"codec_type":"video","codec_name":"vp9","width":640,"height":360}],"format":{"duration":"10"}}`,
			check: func(t *testing.T, w, h int, dur float64, bps int64, fps float64, audio string) {
				if audio != "" {
					t.Errorf("AudioCodec = %q, want empty", audio)
				}
			},
		},
		{
			name: "missing duration and bitrate default to zero",
			json: `{"streams":[{"codec_type":"video","codec_name":"h264","width":640,"height":360,"avg_frame_rate":"0/0"}],"format":{"duration":"N/A"}}`,
			check: func(t *testing.T, w, h int, dur float64, bps int64, fps float64, audio string) {
				if dur != 0 || bps != 0 || fps != 0 {
					t.Errorf("dur=%v bps=%d fps=%v, want all zero", dur, bps, fps)
				}
			},
		},
		{
			name: "falls back to stream duration, bitrate and r_frame_rate",
			json: `{"streams":[{"codec_type":"video","codec_name":"h264","width":640,"height":360,"duration":"42.0","bit_rate":"900000","avg_frame_rate":"0/0","r_frame_rate":"25/1"}],"format":{}}`,
			check: func(t *testing.T, w, h int, dur float64, bps int64, fps float64, audio string) {
				if dur != 42 || bps != 900000 || fps != 25 {
					t.Errorf("dur=%v bps=%d fps=%v, want 42/900000/25", dur, bps, fps)
				}
			},
		},
		{
			name: "cover art is not a video stream",
			json: `{"streams":[{"codec_type":"audio","codec_name":"mp3"},{"codec_type":"video","codec_name":"mjpeg","width":500,"height":500,"disposition":{"attached_pic":1}}],"format":{"duration":"200"}}`,
			wantErr: ErrNoVideoStream,
		},
		{
			name: "cover art before the real video stream",
			json: `{"streams":[{"codec_type":"video","codec_name":"mjpeg","width":500,"height":500,"disposition":{"attached_pic":1}},{"codec_type":"video","codec_name":"h264","width":1280,"height":720}],"format":{}}`,
			check: func(t *testing.T, w, h int, dur float64, bps int64, fps float64, audio string) {
				if w != 1280 || h != 720 {
					t.Errorf("dimensions = %dx%d, want 1280x720", w, h)
				}
			},
		},
		{
			name:    "audio only",
			json:    `{"streams":[{"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"30"}}`,
			wantErr: ErrNoVideoStream,
		},
		{
			name: "rotated portrait video via side data",
			json: `{"streams":[{"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"side_data_list":[{"rotation":-90}]}],"format":{}}`,
			check: func(t *testing.T, w, h int, dur float64, bps int64, fps float64, audio string) {
				if w != 1080 || h != 1920 {
					t.Errorf("dimensions = %dx%d, want 1080x1920", w, h)
				}
			},
		},
		{
			name: "rotated portrait video via tag",
			json: `{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720,"tags":{"rotate":"90"}}],"format":{}}`,
			check: func(t *testing.T, w, h int, dur float64, bps int64, fps float64, audio string) {
				if w != 720 || h != 1280 {
					t.Errorf("dimensions = %dx%d, want 720x1280", w, h)
				}
			},
		},
		{
			name: "upside down keeps dimensions",
			json: `{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720,"tags":{"rotate":"180"}}],"format":{}}`,
			check: func(t *testing.T, w, h int, dur float64, bps int64, fps float64, audio string) {
				if w != 1280 || h != 720 {
					t.Errorf("dimensions = %dx%d, want 1280x720", w, h)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe, err := ParseProbeJSON([]byte(tt.json))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseProbeJSON() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProbeJSON() error = %v", err)
			}
			tt.check(t, probe.Width, probe.Height, probe.DurationSeconds, probe.BitrateBps, probe.Framerate, probe.AudioCodec)
		})
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"0/0", 0},
		{"24", 24},
		{"", 0},
		{"abc/def", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseRate(tt.in); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("parseRate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// stubRunner returns canned results for each invocation.
type stubRunner struct {
	out   *ffmpeg.Outcome
	err   error
	calls []ffmpeg.Invocation
}

func (s *stubRunner) Run(_ context.Context, inv ffmpeg.Invocation) (*ffmpeg.Outcome, error) {
	s.calls = append(s.calls, inv)
	return s.out, s.err
}

func TestInspectorProbe(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		runner := &stubRunner{out: &ffmpeg.Outcome{Stdout: []byte(sampleProbe)}}
		probe, err := NewInspector(runner).Probe(context.Background(), "/media/in.mp4")
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if probe.Height != 1080 {
			t.Errorf("Height = %d, want 1080", probe.Height)
		}
		inv := runner.calls[0]
		if inv.Tool != ffmpeg.FFprobe || !inv.CaptureStdout {
			t.Errorf("unexpected invocation %+v", inv)
		}
		if inv.Args[len(inv.Args)-1] != "/media/in.mp4" {
			t.Errorf("input not passed as last argument: %v", inv.Args)
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		runner := &stubRunner{err: &ffmpeg.EncodeError{Tool: ffmpeg.FFprobe, ExitCode: 1}}
		_, err := NewInspector(runner).Probe(context.Background(), "bad.mp4")
		var probeErr *ProbeError
		if !errors.As(err, &probeErr) {
			t.Fatalf("Probe() error = %v, want *ProbeError", err)
		}
		var encodeErr *ffmpeg.EncodeError
		if !errors.As(err, &encodeErr) {
			t.Error("ProbeError should wrap the EncodeError")
		}
	})

	t.Run("garbage output", func(t *testing.T) {
		runner := &stubRunner{out: &ffmpeg.Outcome{Stdout: []byte("not json")}}
		_, err := NewInspector(runner).Probe(context.Background(), "x.mp4")
		var probeErr *ProbeError
		if !errors.As(err, &probeErr) {
			t.Fatalf("Probe() error = %v, want *ProbeError", err)
		}
	})

	t.Run("no video", func(t *testing.T) {
		runner := &stubRunner{out: &ffmpeg.Outcome{Stdout: []byte(`{"streams":[],"format":{}}`)}}
		_, err := NewInspector(runner).Probe(context.Background(), "x.mp3")
		if !errors.Is(err, ErrNoVideoStream) {
			t.Fatalf("Probe() error = %v, want ErrNoVideoStream", err)
		}
	})

	t.Run("tool missing is not a probe error", func(t *testing.T) {
		runner := &stubRunner{err: &ffmpeg.ToolUnavailableError{Tool: ffmpeg.FFprobe, Err: errors.New("not found")}}
		_, err := NewInspector(runner).Probe(context.Background(), "x.mp4")
		var probeErr *ProbeError
		if errors.As(err, &probeErr) {
			t.Error("missing tool should not be reported as ProbeError")
		}
		var unavailable *ffmpeg.ToolUnavailableError
		if !errors.As(err, &unavailable) {
			t.Errorf("Probe() error = %v, want *ToolUnavailableError", err)
		}
	})
}
