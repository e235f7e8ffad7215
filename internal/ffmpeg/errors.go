package ffmpeg

import (
	"fmt"
	"strings"
)

// ToolUnavailableError means the binary could not be located or started.
type ToolUnavailableError struct {
	Tool Tool
	Path string
	Err  error
}

func (e *ToolUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable (%s): %v", e.Tool, e.Path, e.Err)
}

func (e *ToolUnavailableError) Unwrap() error {
	return e.Err
}

// EncodeError is returned when a tool exits with a non-zero status.
type EncodeError struct {
	Tool       Tool
	ExitCode   int
	StderrTail string
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if last := lastLine(e.StderrTail); last != "" {
		msg += ": " + last
	}
	return msg
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n ")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
