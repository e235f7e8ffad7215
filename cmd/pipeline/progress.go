package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	defaultBarWidth = 40
	minBarWidth     = 10
)

// progressBar redraws a single line on a terminal and falls back to one
// line per stage change otherwise.
type progressBar struct {
	w           io.Writer
	interactive bool
	width       int
	lastStage   string
	lastPercent float64
	drawn       bool
}

func newProgressBar(w io.Writer) *progressBar {
	b := &progressBar{w: w, width: defaultBarWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b.interactive = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			b.width = barWidth(cols)
		}
	}
	return b
}

// barWidth leaves room for the percentage and a stage label.
func barWidth(columns int) int {
	w := columns - 30
	if w > defaultBarWidth {
		w = defaultBarWidth
	}
	if w < minBarWidth {
		w = minBarWidth
	}
	return w
}

func (b *progressBar) update(stage string, percent float64) {
	if b.drawn && stage == b.lastStage && percent == b.lastPercent {
		return
	}

	if b.interactive {
		fmt.Fprintf(b.w, "\r%s\x1b[K", renderBar(b.width, percent, stage))
	} else if stage != b.lastStage && stage != "" {
		fmt.Fprintf(b.w, "%3.0f%% %s\n", percent, stage)
	}
	b.lastStage, b.lastPercent, b.drawn = stage, percent, true
}

func (b *progressBar) done() {
	if b.interactive && b.drawn {
		fmt.Fprintln(b.w)
	}
}

// renderBar draws "[=====>    ]  45% stage" with percent clamped to 0-100.
func renderBar(width int, percent float64, stage string) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))

	var sb strings.Builder
	sb.WriteByte('[')
	switch {
	case filled >= width:
		sb.WriteString(strings.Repeat("=", width))
	default:
		sb.WriteString(strings.Repeat("=", filled))
		sb.WriteByte('>')
		sb.WriteString(strings.Repeat(" ", width-filled-1))
	}
	sb.WriteString("] ")
	fmt.Fprintf(&sb, "%3.0f%%", percent)
	if stage != "" {
		sb.WriteByte(' ')
		sb.WriteString(stage)
	}
	return sb.String()
}
