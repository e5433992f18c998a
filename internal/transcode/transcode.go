package transcode

import (
	"context"
	"errors"
	"fmt"
)

// ErrConversionFailed indicates the external transcoding engine exited with
// an error or produced no usable output.
var ErrConversionFailed = errors.New("audio conversion failed")

// ConversionError carries the transcoding engine's captured standard-error
// output so failures are debuggable without re-running the engine by hand.
type ConversionError struct {
	Stderr string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("audio conversion failed: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("audio conversion failed: %v", e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Is reports ErrConversionFailed so callers can classify the failure with
// errors.Is without inspecting the concrete type.
func (e *ConversionError) Is(target error) bool {
	return target == ErrConversionFailed
}

// Transcoder converts compressed audio bytes into uncompressed PCM WAV
// bytes (16-bit little-endian, 16000 Hz, mono). Implementations may drive a
// subprocess pipeline or an in-process codec; the contract is bytes in,
// WAV bytes out, *ConversionError on failure.
type Transcoder interface {
	Transcode(ctx context.Context, input []byte) ([]byte, error)
}
