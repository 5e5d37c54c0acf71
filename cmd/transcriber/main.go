package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skypro1111/live-transcription-service/internal/capture"
	"github.com/skypro1111/live-transcription-service/internal/config"
	"github.com/skypro1111/live-transcription-service/internal/metrics"
	"github.com/skypro1111/live-transcription-service/internal/pipeline"
	"github.com/skypro1111/live-transcription-service/internal/server"
	"github.com/skypro1111/live-transcription-service/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "live-transcription-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listDevices := flag.Bool("list-devices", false, "List capture devices and exit")
	deviceIndex := flag.Int("device", 0, "Capture device index")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Create the capture source
	source, err := capture.NewMalgoSource(cfg.Audio.SampleRate, cfg.Audio.ChunkSize, logger)
	if err != nil {
		logger.Error("Failed to create capture source", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *listDevices {
		devices, err := source.ListDevices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to enumerate devices: %v\n", err)
			os.Exit(1)
		}
		for _, device := range devices {
			fmt.Printf("%d: %s\n", device.Index, device.Label)
		}
		return
	}

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("chunk_size", cfg.Audio.ChunkSize),
		slog.Int("buffer_seconds", cfg.Audio.BufferSeconds),
		slog.Float64("silence_threshold", cfg.Audio.SilenceThreshold),
		slog.Int("vad_window_size", cfg.VAD.WindowSize),
		slog.Int("min_phrase_length", cfg.Dedup.MinPhraseLength),
		slog.String("transcription_backend", cfg.Transcription.Backend),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	// Create the transcription backend
	transcriber, err := newTranscriber(cfg)
	if err != nil {
		logger.Error("Failed to create transcription backend", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if closer, ok := transcriber.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	logger.Info("Transcription backend initialized",
		slog.String("backend", cfg.Transcription.Backend),
	)

	// Create the pipeline driver
	driver, err := pipeline.NewDriver(pipeline.Config{
		SampleRate:       cfg.Audio.SampleRate,
		BufferSeconds:    cfg.Audio.BufferSeconds,
		SilenceThreshold: cfg.Audio.SilenceThreshold,
		CycleInterval:    cfg.Audio.GetCycleInterval(),
		WindowSize:       cfg.VAD.WindowSize,
		MinPhraseLength:  cfg.Dedup.MinPhraseLength,
		Language:         cfg.Transcription.Language,
		InferenceTimeout: cfg.Transcription.GetTimeoutDuration(),
	}, source, transcriber, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, driver, source, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Print accepted transcripts to stdout as they arrive
	go func() {
		for text := range driver.Transcripts() {
			fmt.Println(text)
		}
	}()

	// Start the pipeline
	if err := driver.Start(*deviceIndex); err != nil {
		logger.Error("Failed to start pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.Int("device_index", *deviceIndex),
	)

	// Wait for shutdown signal or a fatal pipeline error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-driver.Errors():
		logger.Error("Pipeline failed", slog.String("error", err.Error()))
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop the pipeline (waits for any in-flight inference)
	if err := driver.Stop(); err != nil && err != pipeline.ErrNotRunning {
		logger.Error("Error stopping pipeline", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := driver.Stats()
	logger.Info("Final pipeline statistics",
		slog.Uint64("cycles_processed", stats.CyclesProcessed),
		slog.Uint64("segments_extracted", stats.SegmentsExtracted),
		slog.Uint64("transcripts_emitted", stats.TranscriptsEmitted),
		slog.Uint64("transcripts_suppressed", stats.TranscriptsSuppressed),
	)

	logger.Info("Service stopped")
}

// newTranscriber builds the configured transcription backend
func newTranscriber(cfg *config.Config) (transcription.Transcriber, error) {
	switch cfg.Transcription.Backend {
	case "http":
		return transcription.NewHTTPClient(transcription.HTTPConfig{
			Endpoint:   cfg.Transcription.Endpoint,
			APIKey:     cfg.Transcription.APIKey,
			Model:      cfg.Transcription.Model,
			Timeout:    cfg.Transcription.GetTimeoutDuration(),
			MaxRetries: cfg.Transcription.MaxRetries,
			SampleRate: cfg.Audio.SampleRate,
		})
	case "openai":
		return transcription.NewOpenAIClient(transcription.OpenAIConfig{
			APIKey:     cfg.Transcription.APIKey,
			Model:      cfg.Transcription.Model,
			SampleRate: cfg.Audio.SampleRate,
		})
	case "whisper":
		return transcription.NewWhisperClient(transcription.WhisperConfig{
			ModelPath: cfg.Transcription.ModelPath,
		})
	default:
		return nil, fmt.Errorf("unknown transcription backend: %s", cfg.Transcription.Backend)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
