package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"sync"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// Tool names an external binary.
type Tool string

const (
	FFmpeg  Tool = "ffmpeg"
	FFprobe Tool = "ffprobe"
)

// waitDelay bounds how long Wait blocks on I/O after the process is killed.
const waitDelay = 5 * time.Second

// Invocation describes one tool run. Args is passed as argv; nothing goes
// through a shell.
type Invocation struct {
	Tool Tool
	Args []string

	// OnStdoutLine receives stdout line by line. Takes precedence over
	// CaptureStdout.
	OnStdoutLine func(line string)

	// CaptureStdout buffers all of stdout into Outcome.Stdout.
	CaptureStdout bool
}

// Outcome is what a successful run produced.
type Outcome struct {
	Stdout     []byte
	StderrTail string
	Elapsed    time.Duration
}

// Runner executes tool invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Outcome, error)
}

// ExecRunner runs tools as child processes.
type ExecRunner struct {
	paths map[Tool]string

	processes map[*exec.Cmd]Tool
	processMu sync.Mutex
}

// NewExecRunner returns a runner using the given binary names or paths.
// Empty values fall back to the tool name, resolved through PATH.
func NewExecRunner(ffmpegPath, ffprobePath string) *ExecRunner {
	if ffmpegPath == "" {
		ffmpegPath = string(FFmpeg)
	}
	if ffprobePath == "" {
		ffprobePath = string(FFprobe)
	}
	return &ExecRunner{
		paths: map[Tool]string{
			FFmpeg:  ffmpegPath,
			FFprobe: ffprobePath,
		},
		processes: make(map[*exec.Cmd]Tool),
	}
}

// Locate resolves the executable for tool.
func (r *ExecRunner) Locate(tool Tool) (string, error) {
	configured, ok := r.paths[tool]
	if !ok {
		return "", &ToolUnavailableError{Tool: tool, Path: string(tool), Err: errors.New("unknown tool")}
	}
	path, err := exec.LookPath(configured)
	if err != nil {
		return "", &ToolUnavailableError{Tool: tool, Path: configured, Err: err}
	}
	return path, nil
}

// Run starts the tool, streams or buffers stdout, and waits for it to exit.
// A non-zero exit yields *EncodeError; a missing binary *ToolUnavailableError.
// If ctx ends first the process is killed and the context error returned.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*Outcome, error) {
	path, err := r.Locate(inv.Tool)
	if err != nil {
		metrics.ToolInvocationsTotal.WithLabelValues(string(inv.Tool), metrics.ToolStatusUnavailable).Inc()
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, inv.Args...)
	cmd.WaitDelay = waitDelay
	stderr := newTailBuffer(defaultTailBytes, defaultTailLines)
	cmd.Stderr = stderr

	var stdoutBuf bytes.Buffer
	var stdout io.ReadCloser
	switch {
	case inv.OnStdoutLine != nil:
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
		}
	case inv.CaptureStdout:
		cmd.Stdout = &stdoutBuf
	}

	logging.Debug("exec %s %v", inv.Tool, inv.Args)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			metrics.ToolInvocationsTotal.WithLabelValues(string(inv.Tool), metrics.ToolStatusUnavailable).Inc()
			return nil, &ToolUnavailableError{Tool: inv.Tool, Path: path, Err: err}
		}
		return nil, fmt.Errorf("failed to start %s: %w", inv.Tool, err)
	}

	r.track(cmd, inv.Tool)
	defer r.untrack(cmd, inv.Tool)

	if stdout != nil {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			inv.OnStdoutLine(scanner.Text())
		}
		// Keep the pipe drained so the child never blocks on a full buffer.
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	elapsed := time.Since(start)
	metrics.ToolDuration.WithLabelValues(string(inv.Tool)).Observe(elapsed.Seconds())

	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.ToolInvocationsTotal.WithLabelValues(string(inv.Tool), metrics.ToolStatusCancelled).Inc()
		return nil, fmt.Errorf("%s interrupted: %w", inv.Tool, ctxErr)
	}

	if waitErr != nil {
		metrics.ToolInvocationsTotal.WithLabelValues(string(inv.Tool), metrics.ToolStatusFailure).Inc()
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, &EncodeError{Tool: inv.Tool, ExitCode: exitErr.ExitCode(), StderrTail: stderr.String()}
		}
		return nil, fmt.Errorf("%s failed: %w", inv.Tool, waitErr)
	}

	metrics.ToolInvocationsTotal.WithLabelValues(string(inv.Tool), metrics.ToolStatusSuccess).Inc()
	return &Outcome{
		Stdout:     stdoutBuf.Bytes(),
		StderrTail: stderr.String(),
		Elapsed:    elapsed,
	}, nil
}

func (r *ExecRunner) track(cmd *exec.Cmd, tool Tool) {
	r.processMu.Lock()
	r.processes[cmd] = tool
	r.processMu.Unlock()
	metrics.ToolProcessesActive.WithLabelValues(string(tool)).Inc()
}

func (r *ExecRunner) untrack(cmd *exec.Cmd, tool Tool) {
	r.processMu.Lock()
	delete(r.processes, cmd)
	r.processMu.Unlock()
	metrics.ToolProcessesActive.WithLabelValues(string(tool)).Dec()
}

// Active returns the number of running child processes.
func (r *ExecRunner) Active() int {
	r.processMu.Lock()
	defer r.processMu.Unlock()
	return len(r.processes)
}

// Cleanup kills every running child process.
func (r *ExecRunner) Cleanup() {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	for cmd, tool := range r.processes {
		if cmd.Process != nil {
			logging.Info("Killing %s process (pid %d)", tool, cmd.Process.Pid)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill %s process: %v", tool, err)
			}
		}
	}
}
