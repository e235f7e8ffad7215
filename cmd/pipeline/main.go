package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/jobs"
	"media-pipeline/internal/media"
	"media-pipeline/internal/models"
	"media-pipeline/internal/pipeline"
	"media-pipeline/internal/transcoder"
)

const (
	pollInterval    = 200 * time.Millisecond
	shutdownTimeout = 10 * time.Second
	defaultPreset   = "veryfast"
	defaultSegment  = 4
)

// runArgs is the parsed form of "pipeline run".
type runArgs struct {
	input     string
	outputDir string
	opts      models.JobOptions
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := ffmpeg.NewExecRunner(os.Getenv("FFMPEG_PATH"), os.Getenv("FFPROBE_PATH"))

	switch args[0] {
	case "run":
		ra, err := parseRunArgs(args[1:], stderr)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		return runJob(ctx, runner, ra, stdout, stderr)
	case "probe":
		if len(args) != 2 {
			fmt.Fprintln(stderr, "Error: probe takes exactly one input")
			return 2
		}
		return probe(ctx, runner, args[1], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %q\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Adaptive streaming transcoder")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pipeline run [flags] <input> <outputDir>")
	fmt.Fprintln(w, "  pipeline probe <input>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'pipeline run -h' for run flags.")
}

func parseRunArgs(args []string, stderr io.Writer) (runArgs, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var ra runArgs
	fs.IntVar(&ra.opts.ThumbnailCount, "thumbnails", 0, "number of thumbnails to extract")
	fs.BoolVar(&ra.opts.GeneratePreview, "preview", false, "generate a preview clip")
	fs.Float64Var(&ra.opts.PreviewDurationSeconds, "preview-seconds", models.DefaultPreviewSeconds, "preview clip length in seconds")
	fs.StringVar(&ra.opts.Watermark, "watermark", "", "watermark text for previews and thumbnails")
	fs.DurationVar(&ra.opts.Timeout, "timeout", 0, "abort the job after this long (0 = no limit)")

	if err := fs.Parse(args); err != nil {
		return runArgs{}, err
	}
	if fs.NArg() != 2 {
		return runArgs{}, errors.New("run needs <input> and <outputDir>")
	}
	ra.input, ra.outputDir = fs.Arg(0), fs.Arg(1)

	if err := transcoder.ValidateInput(ra.input); err != nil {
		return runArgs{}, err
	}
	if err := transcoder.ValidateWatermark(ra.opts.Watermark); err != nil {
		return runArgs{}, err
	}
	ra.opts = ra.opts.WithDefaults()
	if err := ra.opts.Validate(); err != nil {
		return runArgs{}, err
	}
	return ra, nil
}

func runJob(ctx context.Context, runner *ffmpeg.ExecRunner, ra runArgs, stdout, stderr io.Writer) int {
	trans := transcoder.New(runner, nil)
	trans.SetFontFile(os.Getenv("WATERMARK_FONT"))

	proc := pipeline.New(media.NewInspector(runner), trans, pipeline.Config{
		Preset:         envString("VIDEO_PRESET", defaultPreset),
		SegmentSeconds: envInt("SEGMENT_DURATION", defaultSegment),
	})
	queue := jobs.New(proc, jobs.Config{Workers: 1})

	id, err := queue.AddJob("", ra.input, ra.outputDir, ra.opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	bar := newProgressBar(stderr)
	job := wait(ctx, queue, id, bar)
	bar.done()

	if ctx.Err() != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = queue.Shutdown(shutdownCtx)
		cancel()
		runner.Cleanup()
		job, _ = queue.GetStatus(id)
	} else {
		_ = queue.Shutdown(context.Background())
	}

	return report(job, stdout, stderr)
}

// wait polls the queue until the job is terminal or ctx ends.
func wait(ctx context.Context, queue *jobs.Queue, id string, bar *progressBar) models.Job {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		job, ok := queue.GetStatus(id)
		if !ok {
			return models.Job{ID: id, Status: models.StatusError, ErrorDetail: "job record lost"}
		}
		bar.update(job.Stage, job.ProgressPercent)
		if job.Status.IsTerminal() {
			return job
		}

		select {
		case <-ctx.Done():
			return job
		case <-ticker.C:
		}
	}
}

func report(job models.Job, stdout, stderr io.Writer) int {
	if job.Result != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(job.Result)
		for _, w := range job.Result.Warnings {
			fmt.Fprintf(stderr, "Warning: %s\n", w)
		}
	}

	if job.Status != models.StatusCompleted {
		fmt.Fprintf(stderr, "Job %s %s: %s\n", job.ID, job.Status, job.ErrorDetail)
		return 1
	}
	fmt.Fprintf(stderr, "Job %s completed: %d variant(s), manifest %s\n",
		job.ID, job.Result.SucceededVariants(), job.Result.ManifestPath)
	return 0
}

func probe(ctx context.Context, runner ffmpeg.Runner, input string, stdout, stderr io.Writer) int {
	if err := transcoder.ValidateInput(input); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	p, err := media.NewInspector(runner).Probe(ctx, input)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}
