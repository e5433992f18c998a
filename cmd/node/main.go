package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skypro1111/stt-node/internal/config"
	"github.com/skypro1111/stt-node/internal/metrics"
	"github.com/skypro1111/stt-node/internal/node"
	"github.com/skypro1111/stt-node/internal/server"
	"github.com/skypro1111/stt-node/internal/transcode"
	"github.com/skypro1111/stt-node/internal/transcribe"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "stt-node"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	inputPath := flag.String("input", "-", "Path to work item batch JSON ('-' for stdin)")
	outputPath := flag.String("output", "-", "Path to write results JSON ('-' for stdout)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("model", cfg.Node.Model),
		slog.String("binary_property", cfg.Node.BinaryProperty),
		slog.String("output_property", cfg.Node.OutputProperty),
		slog.Float64("chunk_length", cfg.Node.ChunkLength),
		slog.Float64("stride_length", cfg.Node.StrideLength),
		slog.Bool("continue_on_fail", cfg.Node.ContinueOnFail),
		slog.String("transcoder_binary", cfg.Transcoder.BinaryPath),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize transcoding engine adapter
	transcoder := transcode.NewFFmpeg(transcode.Config{
		BinaryPath: cfg.Transcoder.BinaryPath,
		SampleRate: cfg.Transcoder.SampleRate,
		Channels:   cfg.Transcoder.Channels,
		Timeout:    cfg.Transcoder.GetTimeoutDuration(),
	}, logger)
	logger.Info("Transcoding engine initialized")

	// Initialize transcription client
	transcriber, err := transcribe.NewClient(transcribe.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	}, logger)
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcription client initialized",
		slog.String("endpoint", cfg.Transcription.Endpoint),
	)

	// Initialize the work item executor
	executor, err := node.NewNode(node.Parameters{
		Model:           cfg.Node.Model,
		BinaryProperty:  cfg.Node.BinaryProperty,
		OutputProperty:  cfg.Node.OutputProperty,
		ChunkLengthSec:  cfg.Node.ChunkLength,
		StrideLengthSec: cfg.Node.StrideLength,
		Language:        cfg.Node.Language,
		ContinueOnFail:  cfg.Node.ContinueOnFail,
	}, transcoder, transcriber, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create node", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Node initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, executor, transcriber, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("HTTP API server started",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Cancel processing on shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Read the work item batch
	items, err := readItems(*inputPath)
	if err != nil {
		logger.Error("Failed to read work items", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Work items loaded", slog.Int("count", len(items)))

	// Process the batch
	startTime := time.Now()
	results, err := executor.Execute(ctx, items)
	if err != nil {
		logger.Error("Batch processing failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	stats := executor.GetStats()
	logger.Info("Batch processing completed",
		slog.Int("results", len(results)),
		slog.Uint64("items_processed", stats.ItemsProcessed),
		slog.Uint64("items_failed", stats.ItemsFailed),
		slog.Duration("elapsed", time.Since(startTime)),
	)

	// Write the results
	if err := writeResults(*outputPath, results); err != nil {
		logger.Error("Failed to write results", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Graceful shutdown
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := transcriber.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
}

// readItems loads the work item batch from a file or stdin.
func readItems(path string) ([]node.Item, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file %s: %w", path, err)
		}
		defer file.Close()
		reader = file
	}

	var items []node.Item
	if err := json.NewDecoder(reader).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to parse work items: %w", err)
	}
	return items, nil
}

// writeResults writes the result batch to a file or stdout.
func writeResults(path string, results []node.Result) error {
	var writer io.Writer
	if path == "-" {
		writer = os.Stdout
	} else {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		defer file.Close()
		writer = file
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
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
