package transcribe

import (
	"context"
	"errors"
)

// ErrModelLoad indicates the requested model could not be loaded by the
// inference backend (unknown identifier, failed download, out of memory).
var ErrModelLoad = errors.New("model load failed")

// ErrInference indicates the model loaded but failed while processing the
// audio.
var ErrInference = errors.New("inference failed")

// Options carries optional chunking parameters for long-form audio. Zero
// values mean the backend's defaults apply.
type Options struct {
	// ChunkLengthSec splits long audio into segments of this many seconds.
	ChunkLengthSec float64
	// StrideLengthSec is the overlap between consecutive segments.
	StrideLengthSec float64
	// Language hints the spoken language; empty means auto-detect.
	Language string
}

// Chunk is one timestamped segment of a transcription.
type Chunk struct {
	Text      string     `json:"text"`
	Timestamp [2]float64 `json:"timestamp"`
}

// Result is the structured transcription produced by the model pipeline.
// The pipeline attaches it to the output record verbatim.
type Result struct {
	Text   string  `json:"text"`
	Chunks []Chunk `json:"chunks,omitempty"`
}

// Invoker runs a speech-recognition pipeline over normalized audio.
// Samples must be a single mono float32 sequence at 16000 Hz. The model is
// selected by an identifier from the catalog in models.go; backends may
// cache a loaded model between calls, but callers must tolerate a cold
// load on any call.
type Invoker interface {
	Transcribe(ctx context.Context, modelID string, samples []float32, opts Options) (*Result, error)
}
