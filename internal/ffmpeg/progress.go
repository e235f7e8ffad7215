package ffmpeg

import (
	"strconv"
	"strings"
	"sync"
)

// ProgressParser extracts the encoded media position, in seconds, from one
// line of tool output.
type ProgressParser interface {
	Parse(line string) (seconds float64, ok bool)
}

// OutTimeParser reads the key=value lines written by "-progress pipe:1".
// out_time_ms carries microseconds despite its name.
type OutTimeParser struct{}

func (OutTimeParser) Parse(line string) (float64, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return 0, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		return float64(us) / 1e6, true
	case "out_time":
		return parseClock(value)
	}
	return 0, false
}

// parseClock parses HH:MM:SS(.fraction).
func parseClock(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 {
		return 0, false
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || sec < 0 {
		return 0, false
	}
	return float64(h)*3600 + float64(m)*60 + sec, true
}

// ProgressTracker converts parsed positions into a percentage of a known
// total. Reported values never decrease; intermediate values stop at 99 and
// only Complete reports 100.
type ProgressTracker struct {
	mu       sync.Mutex
	total    float64
	parser   ProgressParser
	report   func(percent float64)
	last     float64
	finished bool
}

// NewProgressTracker returns a tracker for an encode of total seconds.
// A nil parser defaults to OutTimeParser; a nil report discards updates.
func NewProgressTracker(total float64, parser ProgressParser, report func(float64)) *ProgressTracker {
	if parser == nil {
		parser = OutTimeParser{}
	}
	return &ProgressTracker{total: total, parser: parser, report: report}
}

// Line feeds one output line to the tracker.
func (t *ProgressTracker) Line(line string) {
	if t.total <= 0 {
		return
	}
	seconds, ok := t.parser.Parse(line)
	if !ok {
		return
	}

	pct := seconds / t.total * 100
	if pct > 99 {
		pct = 99
	}

	t.mu.Lock()
	if t.finished || pct <= t.last {
		t.mu.Unlock()
		return
	}
	t.last = pct
	t.mu.Unlock()

	if t.report != nil {
		t.report(pct)
	}
}

// Complete reports 100 once.
func (t *ProgressTracker) Complete() {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	t.last = 100
	t.mu.Unlock()

	if t.report != nil {
		t.report(100)
	}
}

// Percent returns the last reported value.
func (t *ProgressTracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
