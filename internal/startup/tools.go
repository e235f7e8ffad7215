package startup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/logging"
)

// ToolLocator is satisfied by *ffmpeg.ExecRunner.
type ToolLocator interface {
	ffmpeg.Runner
	Locate(tool ffmpeg.Tool) (string, error)
}

// ToolStatus is the result of checking one external tool.
type ToolStatus struct {
	Tool    ffmpeg.Tool
	Path    string
	Version string
	Err     error
}

// CheckTools resolves ffmpeg and ffprobe and reads their version lines.
func CheckTools(ctx context.Context, runner ToolLocator) []ToolStatus {
	var out []ToolStatus
	for _, tool := range []ffmpeg.Tool{ffmpeg.FFmpeg, ffmpeg.FFprobe} {
		out = append(out, checkTool(ctx, runner, tool))
	}
	return out
}

func checkTool(ctx context.Context, runner ToolLocator, tool ffmpeg.Tool) ToolStatus {
	status := ToolStatus{Tool: tool}

	path, err := runner.Locate(tool)
	if err != nil {
		status.Err = err
		return status
	}
	status.Path = path

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	outcome, err := runner.Run(ctx, ffmpeg.Invocation{
		Tool:          tool,
		Args:          []string{"-hide_banner", "-version"},
		CaptureStdout: true,
	})
	if err != nil {
		status.Err = fmt.Errorf("failed to get %s version: %w", tool, err)
		return status
	}

	first, _, _ := strings.Cut(string(outcome.Stdout), "\n")
	status.Version = strings.TrimSpace(first)
	return status
}

// LogToolCheck logs tool availability and reports whether every tool was
// usable. Missing tools do not stop the service; jobs fail with a
// tool-unavailable error instead.
func LogToolCheck(statuses []ToolStatus) bool {
	section("TOOL CHECK")

	ok := true
	for _, s := range statuses {
		if s.Err != nil {
			ok = false
			var unavailable *ffmpeg.ToolUnavailableError
			if errors.As(s.Err, &unavailable) {
				logging.Warn("  %s not available: %v", s.Tool, s.Err)
			} else {
				logging.Warn("  %s check failed: %v", s.Tool, s.Err)
			}
			continue
		}
		logging.Info("  [OK] %s: %s", s.Tool, s.Path)
		logging.Debug("       %s", s.Version)
	}
	if !ok {
		logging.Warn("  Jobs will fail until the missing tools are installed")
	}
	return ok
}
