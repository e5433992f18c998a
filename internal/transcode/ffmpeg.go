package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Config contains FFmpeg transcoder configuration.
type Config struct {
	BinaryPath string        // path to the ffmpeg binary
	SampleRate int           // output sample rate in Hz
	Channels   int           // output channel count
	Timeout    time.Duration // per-invocation ceiling for the subprocess
}

// FFmpeg drives an ffmpeg subprocess to decode compressed audio into
// 16-bit little-endian PCM WAV. One isolated process is started per call;
// it is fully drained and reaped before Transcode returns on every path.
type FFmpeg struct {
	config Config
	logger *slog.Logger
}

// NewFFmpeg creates an FFmpeg transcoder, applying defaults for any zero
// configuration value.
func NewFFmpeg(config Config, logger *slog.Logger) *FFmpeg {
	if config.BinaryPath == "" {
		config.BinaryPath = "ffmpeg"
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.Channels <= 0 {
		config.Channels = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &FFmpeg{
		config: config,
		logger: logger,
	}
}

// args builds the ffmpeg argument list: compressed audio on stdin,
// 16-bit PCM WAV on stdout, diagnostics only on stderr.
func (f *FFmpeg) args() []string {
	return []string{
		"-hide_banner",
		"-v", "error",
		"-i", "pipe:0",
		"-vn",
		"-f", "wav",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(f.config.Channels),
		"-ar", strconv.Itoa(f.config.SampleRate),
		"pipe:1",
	}
}

// Transcode converts a compressed audio byte stream into PCM WAV bytes.
// Engine failure and empty output both yield a *ConversionError carrying
// the captured stderr verbatim.
func (f *FFmpeg) Transcode(ctx context.Context, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, &ConversionError{Err: fmt.Errorf("empty input")}
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.config.BinaryPath, f.args()...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	elapsed := time.Since(startTime)

	if err != nil {
		f.logger.Error("Transcoding engine failed",
			slog.String("binary", f.config.BinaryPath),
			slog.Int("input_bytes", len(input)),
			slog.Duration("elapsed", elapsed),
			slog.String("stderr", strings.TrimSpace(stderr.String())),
		)
		return nil, &ConversionError{
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    fmt.Errorf("%s: %w", f.config.BinaryPath, err),
		}
	}

	if stdout.Len() == 0 {
		return nil, &ConversionError{
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    fmt.Errorf("%s produced no output", f.config.BinaryPath),
		}
	}

	f.logger.Debug("Transcoding completed",
		slog.Int("input_bytes", len(input)),
		slog.Int("output_bytes", stdout.Len()),
		slog.Duration("elapsed", elapsed),
	)

	return stdout.Bytes(), nil
}
