package ffmpeg

import (
	"strings"
	"sync"
)

const (
	defaultTailBytes = 4096
	defaultTailLines = 20
)

// tailBuffer is an io.Writer that keeps only the end of what was written.
// FFmpeg can print megabytes of diagnostics on a long encode; only the last
// lines matter for an error report.
type tailBuffer struct {
	mu       sync.Mutex
	buf      []byte
	maxBytes int
	maxLines int
}

func newTailBuffer(maxBytes, maxLines int) *tailBuffer {
	return &tailBuffer{maxBytes: maxBytes, maxLines: maxLines}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.maxBytes; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

// String returns at most maxLines trailing lines.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := strings.TrimRight(string(b.buf), "\r\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > b.maxLines {
		lines = lines[len(lines)-b.maxLines:]
	}
	return strings.Join(lines, "\n")
}
