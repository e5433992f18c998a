package node

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/skypro1111/stt-node/internal/audio"
	"github.com/skypro1111/stt-node/internal/transcode"
	"github.com/skypro1111/stt-node/internal/transcribe"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTranscoder records invocations and returns a fixed WAV payload.
type fakeTranscoder struct {
	calls  int
	output []byte
	err    error
}

func (f *fakeTranscoder) Transcode(ctx context.Context, input []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

// fakeInvoker records the samples it receives and returns a fixed result.
type fakeInvoker struct {
	calls      int
	lastModel  string
	lastOpts   transcribe.Options
	numSamples int
	result     *transcribe.Result
	err        error
}

func (f *fakeInvoker) Transcribe(ctx context.Context, modelID string, samples []float32, opts transcribe.Options) (*transcribe.Result, error) {
	f.calls++
	f.lastModel = modelID
	f.lastOpts = opts
	f.numSamples = len(samples)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// monoWAV builds a 16-bit mono WAV with the given number of zero samples.
func monoWAV(t *testing.T, sampleRate, numSamples int) []byte {
	t.Helper()
	data, err := audio.EncodeWAV(make([]byte, numSamples*2), sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	return data
}

// multiChannelWAV builds a 16-bit WAV with an arbitrary channel count.
func multiChannelWAV(channels, sampleRate, numFrames int) []byte {
	pcm := make([]byte, numFrames*channels*2)
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func newTestNode(t *testing.T, params Parameters, tc transcode.Transcoder, inv transcribe.Invoker) *Node {
	t.Helper()
	n, err := NewNode(params, tc, inv, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}
	return n
}

func TestExecuteWAVSkipsTranscoder(t *testing.T) {
	tc := &fakeTranscoder{}
	inv := &fakeInvoker{result: &transcribe.Result{Text: "hello"}}
	n := newTestNode(t, Parameters{}, tc, inv)

	items := []Item{{
		JSON: map[string]any{"source": "call-42"},
		Binary: map[string]BinaryData{
			"data": {Data: monoWAV(t, 16000, 16000), MimeType: "audio/wav", FileName: "rec.wav"},
		},
	}}

	results, err := n.Execute(context.Background(), items)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if tc.calls != 0 {
		t.Errorf("Expected transcoder not to be invoked for WAV input, got %d calls", tc.calls)
	}
	if inv.calls != 1 {
		t.Fatalf("Expected 1 transcription call, got %d", inv.calls)
	}
	if inv.numSamples != 16000 {
		t.Errorf("Expected 16000 samples, got %d", inv.numSamples)
	}
	if inv.lastModel != transcribe.DefaultModel {
		t.Errorf("Expected default model, got %q", inv.lastModel)
	}

	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].PairedItem != 0 {
		t.Errorf("Expected pairedItem 0, got %d", results[0].PairedItem)
	}
	if results[0].JSON["source"] != "call-42" {
		t.Error("Expected original JSON fields to be preserved")
	}
	transcription, ok := results[0].JSON["transcription"].(map[string]any)
	if !ok {
		t.Fatalf("Expected transcription object, got %T", results[0].JSON["transcription"])
	}
	if transcription["text"] != "hello" {
		t.Errorf("Expected text 'hello', got %v", transcription["text"])
	}
}

func TestExecuteMPEGRoutesThroughTranscoder(t *testing.T) {
	tc := &fakeTranscoder{output: monoWAV(t, 16000, 8000)}
	inv := &fakeInvoker{result: &transcribe.Result{Text: ""}}
	n := newTestNode(t, Parameters{}, tc, inv)

	items := []Item{{
		JSON: map[string]any{},
		Binary: map[string]BinaryData{
			"data": {Data: []byte("not really mpeg"), MimeType: "audio/mpeg", FileName: "rec.mp3"},
		},
	}}

	results, err := n.Execute(context.Background(), items)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if tc.calls != 1 {
		t.Fatalf("Expected 1 transcoder call, got %d", tc.calls)
	}
	if inv.numSamples != 8000 {
		t.Errorf("Expected 8000 samples from transcoded audio, got %d", inv.numSamples)
	}

	// Silence still produces a transcription field, just with empty text.
	transcription, ok := results[0].JSON["transcription"].(map[string]any)
	if !ok {
		t.Fatalf("Expected transcription object, got %T", results[0].JSON["transcription"])
	}
	if transcription["text"] != "" {
		t.Errorf("Expected empty text for silence, got %v", transcription["text"])
	}
}

func TestExecuteMissingInputContinueOnFail(t *testing.T) {
	tc := &fakeTranscoder{}
	inv := &fakeInvoker{result: &transcribe.Result{Text: "ok"}}
	n := newTestNode(t, Parameters{ContinueOnFail: true}, tc, inv)

	items := []Item{
		{JSON: map[string]any{"recording_id": "abc"}}, // no binary at all
		{
			JSON: map[string]any{},
			Binary: map[string]BinaryData{
				"data": {Data: monoWAV(t, 16000, 100), MimeType: "audio/wav"},
			},
		},
	}

	results, err := n.Execute(context.Background(), items)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Error == "" {
		t.Error("Expected error result for item without binary data")
	}
	if !strings.Contains(results[0].Error, "missing input") {
		t.Errorf("Expected missing input error, got %q", results[0].Error)
	}
	if results[0].PairedItem != 0 {
		t.Errorf("Expected failed result paired to item 0, got %d", results[0].PairedItem)
	}
	if results[0].JSON["recording_id"] != "abc" {
		t.Error("Expected error result to keep the item's original fields")
	}
	if results[1].Error != "" || results[1].PairedItem != 1 {
		t.Errorf("Expected clean result paired to item 1, got %+v", results[1])
	}

	stats := n.GetStats()
	if stats.ItemsProcessed != 1 || stats.ItemsFailed != 1 || stats.ItemsTotal != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestExecuteAbortsOnFirstFailure(t *testing.T) {
	tc := &fakeTranscoder{}
	inv := &fakeInvoker{result: &transcribe.Result{Text: "ok"}}
	n := newTestNode(t, Parameters{}, tc, inv)

	items := []Item{
		{JSON: map[string]any{}}, // fails on missing input
		{
			JSON: map[string]any{},
			Binary: map[string]BinaryData{
				"data": {Data: monoWAV(t, 16000, 100), MimeType: "audio/wav"},
			},
		},
	}

	_, err := n.Execute(context.Background(), items)
	if err == nil {
		t.Fatal("Expected Execute to fail on first item")
	}
	if !errors.Is(err, ErrMissingInput) {
		t.Errorf("Expected ErrMissingInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "item 0") {
		t.Errorf("Expected error to name item 0, got %q", err.Error())
	}
	if inv.calls != 0 {
		t.Errorf("Expected no transcription calls after abort, got %d", inv.calls)
	}
}

func TestExecuteConversionFailureCapturesStderr(t *testing.T) {
	tc := &fakeTranscoder{err: &transcode.ConversionError{
		Stderr: "pipe:0: Invalid data found when processing input",
		Err:    errors.New("exit status 1"),
	}}
	inv := &fakeInvoker{result: &transcribe.Result{}}
	n := newTestNode(t, Parameters{ContinueOnFail: true}, tc, inv)

	items := []Item{{
		JSON: map[string]any{},
		Binary: map[string]BinaryData{
			"data": {Data: []byte("garbage"), MimeType: "audio/mpeg"},
		},
	}}

	results, err := n.Execute(context.Background(), items)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(results[0].Error, "Invalid data found") {
		t.Errorf("Expected engine stderr in error result, got %q", results[0].Error)
	}
}

func TestExecuteRejectsMultichannelAudio(t *testing.T) {
	tc := &fakeTranscoder{}
	inv := &fakeInvoker{result: &transcribe.Result{}}
	n := newTestNode(t, Parameters{}, tc, inv)

	items := []Item{{
		JSON: map[string]any{},
		Binary: map[string]BinaryData{
			"data": {Data: multiChannelWAV(3, 44100, 100), MimeType: "audio/wav"},
		},
	}}

	_, err := n.Execute(context.Background(), items)
	if !errors.Is(err, audio.ErrUnsupportedChannelLayout) {
		t.Fatalf("Expected ErrUnsupportedChannelLayout, got %v", err)
	}
	if inv.calls != 0 {
		t.Errorf("Expected no transcription calls for rejected audio, got %d", inv.calls)
	}
}

func TestExecuteInvalidWAVContinueOnFail(t *testing.T) {
	tc := &fakeTranscoder{}
	inv := &fakeInvoker{result: &transcribe.Result{}}
	n := newTestNode(t, Parameters{ContinueOnFail: true}, tc, inv)

	items := []Item{{
		JSON: map[string]any{},
		Binary: map[string]BinaryData{
			// Claims to be WAV but is not; decoding must fail, not crash.
			"data": {Data: []byte("definitely not a wav file"), MimeType: "audio/wav"},
		},
	}}

	results, err := n.Execute(context.Background(), items)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(results[0].Error, "invalid audio format") {
		t.Errorf("Expected invalid audio format error, got %q", results[0].Error)
	}
}

func TestExecuteCustomProperties(t *testing.T) {
	tc := &fakeTranscoder{}
	inv := &fakeInvoker{result: &transcribe.Result{Text: "custom"}}
	n := newTestNode(t, Parameters{
		BinaryProperty:  "audioFile",
		OutputProperty:  "speech",
		ChunkLengthSec:  20,
		StrideLengthSec: 4,
	}, tc, inv)

	items := []Item{{
		JSON: map[string]any{},
		Binary: map[string]BinaryData{
			"audioFile": {Data: monoWAV(t, 16000, 100), MimeType: "audio/wav"},
		},
	}}

	results, err := n.Execute(context.Background(), items)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, ok := results[0].JSON["speech"]; !ok {
		t.Error("Expected transcription under custom output property")
	}
	if inv.lastOpts.ChunkLengthSec != 20 || inv.lastOpts.StrideLengthSec != 4 {
		t.Errorf("Expected chunking options to be forwarded, got %+v", inv.lastOpts)
	}
}

func TestNewNodeValidation(t *testing.T) {
	tc := &fakeTranscoder{}
	inv := &fakeInvoker{}

	if _, err := NewNode(Parameters{}, nil, inv, testLogger(), nil); err == nil {
		t.Error("Expected error for nil transcoder")
	}
	if _, err := NewNode(Parameters{}, tc, nil, testLogger(), nil); err == nil {
		t.Error("Expected error for nil invoker")
	}
	if _, err := NewNode(Parameters{Model: "openai/whisper-bogus"}, tc, inv, testLogger(), nil); err == nil {
		t.Error("Expected error for unsupported model")
	}

	n, err := NewNode(Parameters{}, tc, inv, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}
	p := n.Parameters()
	if p.Model != transcribe.DefaultModel || p.BinaryProperty != "data" || p.OutputProperty != "transcription" {
		t.Errorf("Unexpected defaults: %+v", p)
	}
}
