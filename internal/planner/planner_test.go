package planner

import (
	"reflect"
	"testing"
)

func names(t *testing.T, w, h int, d float64) []string {
	t.Helper()
	var out []string
	for _, v := range PlanVariants(w, h, d) {
		out = append(out, v.Name)
	}
	return out
}

func TestPlanVariantsLadder(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		expect []string
	}{
		{"1080p source", 1920, 1080, []string{"360p", "480p", "720p", "1080p"}},
		{"4K source", 3840, 2160, []string{"360p", "480p", "720p", "1080p"}},
		{"720p source", 1280, 720, []string{"360p", "480p", "720p"}},
		{"between rungs", 1000, 600, []string{"360p", "480p"}},
		{"exactly smallest rung", 640, 360, []string{"360p"}},
		{"portrait 1080p", 1080, 1920, []string{"360p", "480p", "720p", "1080p"}},
		{"4:3 at 1440x1080", 1440, 1080, []string{"360p", "480p", "720p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(t, tt.w, tt.h, 600)
			if !reflect.DeepEqual(got, tt.expect) {
				t.Errorf("PlanVariants(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.expect)
			}
		})
	}
}

func TestPlanVariantsRungSpecs(t *testing.T) {
	variants := PlanVariants(1920, 1080, 600)

	want := []struct {
		w, h, kbps, maxrate, bufsize int
	}{
		{640, 360, 800, 856, 1200},
		{854, 480, 1200, 1284, 1800},
		{1280, 720, 2500, 2675, 3750},
		{1920, 1080, 5000, 5350, 7500},
	}

	for i, v := range variants {
		w := want[i]
		if v.Width != w.w || v.Height != w.h {
			t.Errorf("%s: size %dx%d, want %dx%d", v.Name, v.Width, v.Height, w.w, w.h)
		}
		if v.TargetBitrateKbps != w.kbps || v.MaxrateKbps != w.maxrate || v.BufsizeKb != w.bufsize {
			t.Errorf("%s: rates %d/%d/%d, want %d/%d/%d", v.Name,
				v.TargetBitrateKbps, v.MaxrateKbps, v.BufsizeKb, w.kbps, w.maxrate, w.bufsize)
		}
		if v.Codec != "h264" || v.Preset != DefaultPreset || v.FPS != DefaultFPS {
			t.Errorf("%s: codec/preset/fps = %s/%s/%v", v.Name, v.Codec, v.Preset, v.FPS)
		}
		if v.Profile == "" || v.Level == "" {
			t.Errorf("%s: missing profile/level", v.Name)
		}
	}
}

func TestPlanVariantsPortraitOrientation(t *testing.T) {
	for _, v := range PlanVariants(1080, 1920, 60) {
		if v.Height <= v.Width {
			t.Errorf("%s: %dx%d is not portrait", v.Name, v.Width, v.Height)
		}
	}
}

func TestPlanVariantsFallback(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		wantName string
		wantW    int
		wantH    int
		wantKbps int
	}{
		{"480x360 source", 480, 360, "360p", 480, 360, 600},
		{"tiny source", 160, 120, "120p", 160, 120, 200},
		{"odd dimensions", 321, 241, "240p", 320, 240, 267},
		{"wide and short", 1000, 300, "256p", 854, 256, 759},
		{"portrait small", 360, 640, "360p", 360, 640, 800},
		{"unknown size", 0, 0, "360p", 640, 360, 800},
		{"single pixel", 1, 1, "2p", 2, 2, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variants := PlanVariants(tt.w, tt.h, 10)
			if len(variants) != 1 {
				t.Fatalf("PlanVariants(%d, %d) returned %d variants, want 1", tt.w, tt.h, len(variants))
			}
			v := variants[0]
			if v.Name != tt.wantName || v.Width != tt.wantW || v.Height != tt.wantH {
				t.Errorf("fallback = %s %dx%d, want %s %dx%d", v.Name, v.Width, v.Height, tt.wantName, tt.wantW, tt.wantH)
			}
			if v.TargetBitrateKbps != tt.wantKbps {
				t.Errorf("fallback bitrate = %d, want %d", v.TargetBitrateKbps, tt.wantKbps)
			}
			if tt.w > 0 && (v.Width > max(tt.w, 2) || v.Height > max(tt.h, 2)) {
				t.Errorf("fallback %dx%d exceeds source %dx%d", v.Width, v.Height, tt.w, tt.h)
			}
			if v.Width%2 != 0 || v.Height%2 != 0 {
				t.Errorf("fallback %dx%d has odd dimensions", v.Width, v.Height)
			}
		})
	}
}

func TestPlanVariantsNeverUpscales(t *testing.T) {
	for w := 0; w <= 4000; w += 97 {
		for h := 0; h <= 2400; h += 61 {
			variants := PlanVariants(w, h, 100)
			if len(variants) == 0 {
				t.Fatalf("PlanVariants(%d, %d) returned no variants", w, h)
			}
			if w <= 0 || h <= 0 {
				continue
			}
			for _, v := range variants {
				if v.Height > max(h, 2) || v.Width > max(w, 2) {
					t.Fatalf("PlanVariants(%d, %d) includes %s at %dx%d", w, h, v.Name, v.Width, v.Height)
				}
			}
			for i := 1; i < len(variants); i++ {
				if variants[i].TargetBitrateKbps <= variants[i-1].TargetBitrateKbps {
					t.Fatalf("PlanVariants(%d, %d) not ascending: %v", w, h, variants)
				}
			}
		}
	}
}

func TestSegmentSeconds(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		duration   float64
		want       int
	}{
		{"default long source", 0, 600, 4},
		{"default short clip", 0, 10, 2},
		{"unknown duration", 0, 0, 4},
		{"boundary", 0, 20, 4},
		{"configured", 6, 600, 6},
		{"configured short", 6, 12, 3},
		{"one second segments", 1, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := segmentSeconds(tt.configured, tt.duration); got != tt.want {
				t.Errorf("segmentSeconds(%d, %v) = %d, want %d", tt.configured, tt.duration, got, tt.want)
			}
		})
	}
}

func TestPlannerConfiguration(t *testing.T) {
	p := New("slow", 6)
	for _, v := range p.Plan(1280, 720, 600) {
		if v.Preset != "slow" || v.SegmentSeconds != 6 {
			t.Errorf("%s: preset=%s segment=%d, want slow/6", v.Name, v.Preset, v.SegmentSeconds)
		}
	}
}
