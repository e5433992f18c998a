package audio

import (
	"errors"
	"fmt"
	"math"
)

// TargetSampleRate is the sample rate every transcription model in the
// catalog expects.
const TargetSampleRate = 16000

// ErrUnsupportedChannelLayout indicates a channel count outside {1, 2}.
// The downmix step only defines mono passthrough and stereo downmix;
// anything else is rejected instead of silently mishandled.
var ErrUnsupportedChannelLayout = errors.New("unsupported channel layout")

// stereoScale compensates for the amplitude loss of averaging two
// uncorrelated channels: combined energy is renormalized by sqrt(2).
var stereoScale = float32(math.Sqrt2)

// DequantizeSamples converts raw little-endian PCM bytes into float32
// samples scaled to [-1, 1]. Integer formats are divided by their maximum
// magnitude; float input passes through unscaled.
func DequantizeSamples(data []byte, format SampleFormat) ([]float32, error) {
	width := format.BytesPerSample()
	if width == 0 {
		return nil, fmt.Errorf("%w: unknown sample format %d", ErrInvalidAudioFormat, int(format))
	}
	if len(data)%width != 0 {
		return nil, fmt.Errorf("%w: data length %d is not a multiple of sample width %d",
			ErrInvalidAudioFormat, len(data), width)
	}

	n := len(data) / width
	samples := make([]float32, n)

	switch format {
	case FormatPCM8:
		for i := 0; i < n; i++ {
			samples[i] = (float32(data[i]) - 128) / 128
		}
	case FormatPCM16:
		for i := 0; i < n; i++ {
			v := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
			samples[i] = float32(v) / 32768
		}
	case FormatPCM24:
		for i := 0; i < n; i++ {
			v := int32(uint32(data[i*3]) | uint32(data[i*3+1])<<8 | uint32(data[i*3+2])<<16)
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF) // sign extend
			}
			samples[i] = float32(v) / 8388608
		}
	case FormatPCM32:
		for i := 0; i < n; i++ {
			v := int32(uint32(data[i*4]) | uint32(data[i*4+1])<<8 |
				uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24)
			samples[i] = float32(float64(v) / 2147483648)
		}
	case FormatFloat32:
		for i := 0; i < n; i++ {
			bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 |
				uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
			samples[i] = math.Float32frombits(bits)
		}
	}

	return samples, nil
}

// QuantizeSamples converts float32 samples back into raw little-endian PCM
// bytes of the given format, the inverse of DequantizeSamples. Values
// outside [-1, 1] are clamped to the representable range.
func QuantizeSamples(samples []float32, format SampleFormat) ([]byte, error) {
	width := format.BytesPerSample()
	if width == 0 {
		return nil, fmt.Errorf("%w: unknown sample format %d", ErrInvalidAudioFormat, int(format))
	}

	data := make([]byte, len(samples)*width)

	switch format {
	case FormatPCM8:
		for i, s := range samples {
			v := clampInt(int64(math.Round(float64(s)*128))+128, 0, 255)
			data[i] = byte(v)
		}
	case FormatPCM16:
		for i, s := range samples {
			v := clampInt(int64(math.Round(float64(s)*32768)), -32768, 32767)
			data[i*2] = byte(v)
			data[i*2+1] = byte(v >> 8)
		}
	case FormatPCM24:
		for i, s := range samples {
			v := clampInt(int64(math.Round(float64(s)*8388608)), -8388608, 8388607)
			data[i*3] = byte(v)
			data[i*3+1] = byte(v >> 8)
			data[i*3+2] = byte(v >> 16)
		}
	case FormatPCM32:
		for i, s := range samples {
			v := clampInt(int64(math.Round(float64(s)*2147483648)), -2147483648, 2147483647)
			data[i*4] = byte(v)
			data[i*4+1] = byte(v >> 8)
			data[i*4+2] = byte(v >> 16)
			data[i*4+3] = byte(v >> 24)
		}
	case FormatFloat32:
		for i, s := range samples {
			bits := math.Float32bits(s)
			data[i*4] = byte(bits)
			data[i*4+1] = byte(bits >> 8)
			data[i*4+2] = byte(bits >> 16)
			data[i*4+3] = byte(bits >> 24)
		}
	}

	return data, nil
}

func clampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Deinterleave splits an interleaved sample sequence into per-channel
// sequences of equal length.
func Deinterleave(samples []float32, channels int) ([][]float32, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: channel count must be at least 1, got %d", ErrInvalidAudioFormat, channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: sample count %d is not a multiple of channel count %d",
			ErrInvalidAudioFormat, len(samples), channels)
	}

	frames := len(samples) / channels
	out := make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		out[ch] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			out[ch][i] = samples[i*channels+ch]
		}
	}

	return out, nil
}

// Resample converts a sample sequence from one rate to another using linear
// interpolation. A same-rate conversion returns a copy of the input.
func Resample(samples []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive, got %d -> %d", fromRate, toRate)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	if fromRate == toRate {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	outLen := int(math.Round(float64(len(samples)) * float64(toRate) / float64(fromRate)))
	if outLen == 0 {
		return nil, nil
	}

	step := float64(fromRate) / float64(toRate)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}

	return out, nil
}

// Downmix combines per-channel sample sequences into a single mono sequence.
// Mono input passes through unchanged; stereo is averaged with the
// energy-preserving sqrt(2) scale factor. Any other channel count fails with
// ErrUnsupportedChannelLayout. No clamp is applied: in-range stereo inputs
// stay within [-1, 1] because sqrt(2)/2 < 1.
func Downmix(channels [][]float32) ([]float32, error) {
	switch len(channels) {
	case 1:
		return channels[0], nil
	case 2:
		left, right := channels[0], channels[1]
		if len(left) != len(right) {
			return nil, fmt.Errorf("%w: channel lengths differ (%d vs %d)",
				ErrInvalidAudioFormat, len(left), len(right))
		}
		out := make([]float32, len(left))
		for i := range left {
			out[i] = stereoScale * (left[i] + right[i]) / 2
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d channels (only mono and stereo are supported)",
		ErrUnsupportedChannelLayout, len(channels))
}

// Normalize converts a decoded PCM buffer into the canonical mono float32
// sequence at targetRate: per-channel resampling followed by downmix. The
// channel layout is validated up front so an unsupported buffer produces no
// partial output.
func Normalize(buf *PCMBuffer, targetRate int) ([]float32, error) {
	if buf == nil || buf.NumChannels() == 0 {
		return nil, fmt.Errorf("%w: empty PCM buffer", ErrInvalidAudioFormat)
	}
	if n := buf.NumChannels(); n > 2 {
		return nil, fmt.Errorf("%w: %d channels (only mono and stereo are supported)",
			ErrUnsupportedChannelLayout, n)
	}

	resampled := make([][]float32, buf.NumChannels())
	for ch, samples := range buf.Channels {
		out, err := Resample(samples, buf.SampleRate, targetRate)
		if err != nil {
			return nil, fmt.Errorf("resampling channel %d: %w", ch, err)
		}
		resampled[ch] = out
	}

	return Downmix(resampled)
}
