package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/workers"
)

const maxDefaultWorkers = 4

var validPresets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true, "fast": true,
	"medium": true, "slow": true, "slower": true, "veryslow": true,
}

// Config holds all application configuration
type Config struct {
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	OutputDir   string
	FFmpegPath  string
	FFprobePath string

	Workers         int
	JobRetention    time.Duration
	MaxRetainedJobs int
	JobTimeout      time.Duration

	VideoPreset     string
	SegmentSeconds  int
	WatermarkFont   string
	LogHTTPRequests bool
}

// LoadConfig prints the banner, then loads and validates configuration from
// environment variables.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()
	return loadConfig()
}

func loadConfig() (*Config, error) {
	section("CONFIGURATION")

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		OutputDir:       getEnv("OUTPUT_DIR", "/output"),
		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:     getEnv("FFPROBE_PATH", "ffprobe"),
		JobRetention:    getEnvDuration("JOB_RETENTION", time.Hour),
		MaxRetainedJobs: getEnvInt("MAX_RETAINED_JOBS", 500),
		JobTimeout:      getEnvDuration("JOB_TIMEOUT", 0),
		VideoPreset:     getEnv("VIDEO_PRESET", "veryfast"),
		SegmentSeconds:  getEnvInt("SEGMENT_DURATION", 4),
		WatermarkFont:   getEnv("WATERMARK_FONT", ""),
		LogHTTPRequests: getEnvBool("LOG_HTTP_REQUESTS", true),
	}

	// An explicit TRANSCODE_WORKERS is taken as-is; only the derived default is capped.
	limit := maxDefaultWorkers
	if os.Getenv(workers.EnvOverride) != "" {
		limit = 0
	}
	cfg.Workers = workers.ForTranscode(limit)

	if !validPresets[cfg.VideoPreset] {
		logging.Warn("  Invalid VIDEO_PRESET %q, using default: veryfast", cfg.VideoPreset)
		cfg.VideoPreset = "veryfast"
	}
	if cfg.SegmentSeconds < 1 {
		logging.Warn("  Invalid SEGMENT_DURATION %d, using default: 4", cfg.SegmentSeconds)
		cfg.SegmentSeconds = 4
	}
	if cfg.WatermarkFont != "" {
		if info, err := os.Stat(cfg.WatermarkFont); err != nil || info.IsDir() {
			logging.Warn("  WATERMARK_FONT %q is not a readable file, falling back to fontconfig", cfg.WatermarkFont)
			cfg.WatermarkFont = ""
		}
	}
	if cfg.MaxRetainedJobs < 0 {
		cfg.MaxRetainedJobs = 0
	}

	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  OUTPUT_DIR:          %s", cfg.OutputDir)
	logging.Info("  FFMPEG_PATH:         %s", cfg.FFmpegPath)
	logging.Info("  FFPROBE_PATH:        %s", cfg.FFprobePath)
	logging.Info("  TRANSCODE_WORKERS:   %d", cfg.Workers)
	logging.Info("  JOB_RETENTION:       %v", cfg.JobRetention)
	logging.Info("  MAX_RETAINED_JOBS:   %d", cfg.MaxRetainedJobs)
	logging.Info("  JOB_TIMEOUT:         %s", durationOrNone(cfg.JobTimeout))
	logging.Info("  VIDEO_PRESET:        %s", cfg.VideoPreset)
	logging.Info("  SEGMENT_DURATION:    %ds", cfg.SegmentSeconds)
	logging.Info("  WATERMARK_FONT:      %s", orFontconfig(cfg.WatermarkFont))
	logging.Info("  LOG_HTTP_REQUESTS:   %v", cfg.LogHTTPRequests)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	section("DIRECTORY SETUP")

	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	cfg.OutputDir = outputDir
	logging.Info("  Output directory (absolute): %s", outputDir)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("output directory error: %w", err)
	}
	if err := testWriteAccess(outputDir); err != nil {
		return nil, fmt.Errorf("output directory is not writable: %w", err)
	}
	logging.Info("  [OK] Output directory is writable")

	return cfg, nil
}

func testWriteAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write test file %s: %v", name, err)
	}
	return nil
}

func orFontconfig(path string) string {
	if path == "" {
		return "(fontconfig default)"
	}
	return path
}

func durationOrNone(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s") and bare seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
