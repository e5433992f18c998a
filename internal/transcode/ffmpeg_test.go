package transcode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFFmpegArgs(t *testing.T) {
	f := NewFFmpeg(Config{SampleRate: 16000, Channels: 1}, testLogger())
	args := strings.Join(f.args(), " ")

	for _, want := range []string{"-i pipe:0", "-acodec pcm_s16le", "-ac 1", "-ar 16000", "pipe:1"} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected args to contain %q, got %q", want, args)
		}
	}
}

func TestFFmpegDefaults(t *testing.T) {
	f := NewFFmpeg(Config{}, testLogger())

	if f.config.BinaryPath != "ffmpeg" {
		t.Errorf("Expected default binary path 'ffmpeg', got %q", f.config.BinaryPath)
	}
	if f.config.SampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", f.config.SampleRate)
	}
	if f.config.Channels != 1 {
		t.Errorf("Expected default channel count 1, got %d", f.config.Channels)
	}
	if f.config.Timeout != 60*time.Second {
		t.Errorf("Expected default timeout 60s, got %v", f.config.Timeout)
	}
}

func TestFFmpegEmptyInput(t *testing.T) {
	f := NewFFmpeg(Config{}, testLogger())

	_, err := f.Transcode(context.Background(), nil)
	if !errors.Is(err, ErrConversionFailed) {
		t.Errorf("Expected ErrConversionFailed, got %v", err)
	}
}

func TestFFmpegEngineFailure(t *testing.T) {
	// A binary that exits non-zero must surface as ErrConversionFailed;
	// no ffmpeg is needed for this path.
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("'false' not available")
	}

	f := NewFFmpeg(Config{BinaryPath: "false", Timeout: 5 * time.Second}, testLogger())

	_, err := f.Transcode(context.Background(), []byte("not really audio"))
	if err == nil {
		t.Fatal("Expected error from failing engine")
	}
	if !errors.Is(err, ErrConversionFailed) {
		t.Errorf("Expected ErrConversionFailed, got %v", err)
	}

	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("Expected *ConversionError, got %T", err)
	}
}

func TestFFmpegMissingBinary(t *testing.T) {
	f := NewFFmpeg(Config{BinaryPath: "/nonexistent/ffmpeg", Timeout: 5 * time.Second}, testLogger())

	_, err := f.Transcode(context.Background(), []byte("data"))
	if !errors.Is(err, ErrConversionFailed) {
		t.Errorf("Expected ErrConversionFailed, got %v", err)
	}
}

func TestConversionErrorMessage(t *testing.T) {
	err := &ConversionError{
		Stderr: "pipe:0: Invalid data found when processing input",
		Err:    errors.New("exit status 1"),
	}

	msg := err.Error()
	if !strings.Contains(msg, "Invalid data found") {
		t.Errorf("Expected message to carry engine stderr verbatim, got %q", msg)
	}
	if !strings.Contains(msg, "exit status 1") {
		t.Errorf("Expected message to carry the underlying error, got %q", msg)
	}
}

func TestConversionErrorUnwrap(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &ConversionError{Err: cause}

	if !errors.Is(err, cause) {
		t.Error("Expected Unwrap to expose the underlying error")
	}
	if !errors.Is(err, ErrConversionFailed) {
		t.Error("Expected errors.Is to match ErrConversionFailed")
	}
}
