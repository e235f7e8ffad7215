package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"media-pipeline/internal/ffmpeg"
	"media-pipeline/internal/handlers"
	"media-pipeline/internal/jobs"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/media"
	"media-pipeline/internal/memory"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/middleware"
	"media-pipeline/internal/pipeline"
	"media-pipeline/internal/startup"
	"media-pipeline/internal/transcoder"
)

const (
	shutdownTimeout  = 30 * time.Second
	metricsInterval  = 15 * time.Second
	toolCheckTimeout = 10 * time.Second
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	info := startup.GetBuildInfo()
	metrics.SetAppInfo(info.Version, info.Commit, info.GoVersion)

	runner := ffmpeg.NewExecRunner(config.FFmpegPath, config.FFprobePath)

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), toolCheckTimeout)
	var toolsReady atomic.Bool
	toolsReady.Store(startup.LogToolCheck(startup.CheckTools(checkCtx, runner)))
	cancelCheck()

	trans := transcoder.New(runner, nil)
	trans.SetFontFile(config.WatermarkFont)

	proc := pipeline.New(media.NewInspector(runner), trans, pipeline.Config{
		Preset:         config.VideoPreset,
		SegmentSeconds: config.SegmentSeconds,
	})

	startup.LogQueueInit(config)
	queue := jobs.New(proc, jobs.Config{
		Workers:        config.Workers,
		Retention:      config.JobRetention,
		MaxJobs:        config.MaxRetainedJobs,
		DefaultTimeout: config.JobTimeout,
	})
	queue.Start()

	h := handlers.New(queue, config.OutputDir)
	h.SetReadiness(toolsReady.Load)

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHTTPRequests)

	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	var handler http.Handler = router
	if config.LogHTTPRequests {
		handler = middleware.Logger(middleware.DefaultLoggingConfig())(handler)
	}
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(queue, metricsInterval)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, queue, runner, collector)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Job API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/jobs", h.CreateJob).Methods("POST")
	api.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}", h.CancelJob).Methods("DELETE")
	api.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods("POST")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, queue *jobs.Queue, runner *ffmpeg.ExecRunner, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping job queue")
	if err := queue.Shutdown(ctx); err != nil {
		logging.Warn("Job queue shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Job queue stopped")
	}

	startup.LogShutdownStep("Terminating ffmpeg processes")
	runner.Cleanup()
	startup.LogShutdownStepComplete("FFmpeg cleanup complete")

	if collector != nil {
		collector.Stop()
	}
	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
