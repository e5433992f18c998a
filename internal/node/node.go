package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skypro1111/stt-node/internal/audio"
	"github.com/skypro1111/stt-node/internal/metrics"
	"github.com/skypro1111/stt-node/internal/transcode"
	"github.com/skypro1111/stt-node/internal/transcribe"
)

// ErrMissingInput indicates a work item carries no binary payload under the
// configured property name.
var ErrMissingInput = errors.New("missing input")

// Pipeline stages used for failure attribution.
const (
	stageInput      = "input"
	stageTranscode  = "transcode"
	stageDecode     = "decode"
	stageNormalize  = "normalize"
	stageTranscribe = "transcribe"
)

// Parameters control how work items are processed.
type Parameters struct {
	// Model is the speech recognition model identifier.
	Model string
	// BinaryProperty names the binary attachment holding the audio.
	BinaryProperty string
	// OutputProperty names the JSON field the transcription is written to.
	OutputProperty string
	// ChunkLengthSec and StrideLengthSec tune long-form chunked inference.
	// Zero means the engine default.
	ChunkLengthSec  float64
	StrideLengthSec float64
	// Language optionally pins the spoken language instead of auto-detection.
	Language string
	// ContinueOnFail emits failed items as error results instead of aborting
	// the whole batch on the first failure.
	ContinueOnFail bool
}

// applyDefaults fills unset parameters.
func (p *Parameters) applyDefaults() {
	if p.Model == "" {
		p.Model = transcribe.DefaultModel
	}
	if p.BinaryProperty == "" {
		p.BinaryProperty = "data"
	}
	if p.OutputProperty == "" {
		p.OutputProperty = "transcription"
	}
}

// Stats represents node processing statistics.
type Stats struct {
	ItemsProcessed uint64 `json:"items_processed"`
	ItemsFailed    uint64 `json:"items_failed"`
	ItemsTotal     uint64 `json:"items_total"`
}

// Node runs the speech-to-text pipeline over batches of work items. Each
// item's audio attachment is transcoded if compressed, decoded, normalized
// to 16 kHz mono float samples, and sent to the transcription engine.
type Node struct {
	params     Parameters
	transcoder transcode.Transcoder
	invoker    transcribe.Invoker
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu    sync.RWMutex
	stats Stats
}

// NewNode creates a node. The metrics parameter may be nil to disable
// Prometheus instrumentation.
func NewNode(params Parameters, transcoder transcode.Transcoder, invoker transcribe.Invoker, logger *slog.Logger, m *metrics.Metrics) (*Node, error) {
	if transcoder == nil {
		return nil, fmt.Errorf("transcoder cannot be nil")
	}
	if invoker == nil {
		return nil, fmt.Errorf("invoker cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	params.applyDefaults()
	if !transcribe.IsSupportedModel(params.Model) {
		return nil, fmt.Errorf("unsupported model: %s", params.Model)
	}

	return &Node{
		params:     params,
		transcoder: transcoder,
		invoker:    invoker,
		logger:     logger,
		metrics:    m,
	}, nil
}

// Execute processes items sequentially in input order. In continue-on-fail
// mode every item yields a result: failures become error results that keep
// their pairedItem index. Otherwise the first failure aborts the batch and
// is returned wrapped with the offending item's index.
func (n *Node) Execute(ctx context.Context, items []Item) ([]Result, error) {
	results := make([]Result, 0, len(items))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		startTime := time.Now()
		output, stage, err := n.processItem(ctx, item)
		if err != nil {
			n.recordFailure(stage)
			n.logger.Error("Item processing failed",
				"item", i,
				"stage", stage,
				"error", err)

			if !n.params.ContinueOnFail {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			// Error results keep the item's original fields so downstream
			// steps can still correlate them.
			errJSON := make(map[string]any, len(item.JSON)+1)
			for k, v := range item.JSON {
				errJSON[k] = v
			}
			errJSON["error"] = err.Error()
			results = append(results, Result{
				JSON:       errJSON,
				PairedItem: i,
				Error:      err.Error(),
			})
			continue
		}

		n.recordSuccess(time.Since(startTime).Seconds())
		results = append(results, Result{
			JSON:       output,
			PairedItem: i,
		})
	}

	return results, nil
}

// processItem runs the full pipeline for one item. On failure it reports the
// stage the item died in, for logging and metrics attribution.
func (n *Node) processItem(ctx context.Context, item Item) (map[string]any, string, error) {
	binary, ok := item.Binary[n.params.BinaryProperty]
	if !ok || len(binary.Data) == 0 {
		return nil, stageInput, fmt.Errorf("%w: no binary data in property %q", ErrMissingInput, n.params.BinaryProperty)
	}

	data := binary.Data

	// Compressed formats go through the external transcoding engine first;
	// anything else is assumed to already be PCM WAV.
	if audio.Classify(binary.MimeType, binary.FileName) == audio.NeedsTranscode {
		transcodeStart := time.Now()
		converted, err := n.transcoder.Transcode(ctx, data)
		if err != nil {
			return nil, stageTranscode, err
		}
		if n.metrics != nil {
			n.metrics.RecordTranscode(time.Since(transcodeStart).Seconds())
		}
		data = converted
	}

	normalizeStart := time.Now()
	buf, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, stageDecode, err
	}

	samples, err := audio.Normalize(buf, audio.TargetSampleRate)
	if err != nil {
		return nil, stageNormalize, err
	}

	audioSeconds := float64(len(samples)) / float64(audio.TargetSampleRate)
	if n.metrics != nil {
		n.metrics.RecordNormalize(time.Since(normalizeStart).Seconds(), audioSeconds)
	}

	n.logger.Debug("Audio normalized",
		"source_rate", buf.SampleRate,
		"source_channels", buf.NumChannels(),
		"source_format", buf.Format.String(),
		"duration_seconds", audioSeconds)

	transcribeStart := time.Now()
	if n.metrics != nil {
		n.metrics.RecordTranscriptionRequest()
	}
	result, err := n.invoker.Transcribe(ctx, n.params.Model, samples, transcribe.Options{
		ChunkLengthSec:  n.params.ChunkLengthSec,
		StrideLengthSec: n.params.StrideLengthSec,
		Language:        n.params.Language,
	})
	if err != nil {
		if n.metrics != nil {
			n.metrics.RecordTranscriptionFailure(time.Since(transcribeStart).Seconds())
		}
		return nil, stageTranscribe, err
	}
	if n.metrics != nil {
		n.metrics.RecordTranscriptionSuccess(time.Since(transcribeStart).Seconds())
	}

	// Preserve the item's original JSON and attach the transcription under
	// the configured output property.
	output := make(map[string]any, len(item.JSON)+1)
	for k, v := range item.JSON {
		output[k] = v
	}
	output[n.params.OutputProperty] = transcriptionJSON(result)

	return output, "", nil
}

// transcriptionJSON converts an engine result into the output document shape.
func transcriptionJSON(result *transcribe.Result) map[string]any {
	chunks := make([]map[string]any, 0, len(result.Chunks))
	for _, chunk := range result.Chunks {
		chunks = append(chunks, map[string]any{
			"text":      chunk.Text,
			"timestamp": []float64{chunk.Timestamp[0], chunk.Timestamp[1]},
		})
	}
	return map[string]any{
		"text":   result.Text,
		"chunks": chunks,
	}
}

func (n *Node) recordSuccess(durationSeconds float64) {
	n.mu.Lock()
	n.stats.ItemsProcessed++
	n.stats.ItemsTotal++
	n.mu.Unlock()

	if n.metrics != nil {
		n.metrics.RecordItemProcessed(durationSeconds)
	}
}

func (n *Node) recordFailure(stage string) {
	n.mu.Lock()
	n.stats.ItemsFailed++
	n.stats.ItemsTotal++
	n.mu.Unlock()

	if n.metrics != nil {
		n.metrics.RecordItemFailed(stage)
	}
}

// GetStats returns current processing statistics.
func (n *Node) GetStats() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

// Parameters returns the node's effective parameters after defaulting.
func (n *Node) Parameters() Parameters {
	return n.params
}
