package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidAudioFormat indicates that an input buffer could not be parsed
// as a recognized PCM container.
var ErrInvalidAudioFormat = errors.New("invalid audio format")

// SampleFormat identifies the sample encoding of a PCM stream.
type SampleFormat int

const (
	FormatPCM8    SampleFormat = iota // unsigned 8-bit integer
	FormatPCM16                       // signed 16-bit integer, little-endian
	FormatPCM24                       // signed 24-bit integer, little-endian
	FormatPCM32                       // signed 32-bit integer, little-endian
	FormatFloat32                     // IEEE 754 32-bit float, little-endian
)

// BitsPerSample returns the number of bits used per sample for the format.
func (f SampleFormat) BitsPerSample() int {
	switch f {
	case FormatPCM8:
		return 8
	case FormatPCM16:
		return 16
	case FormatPCM24:
		return 24
	case FormatPCM32, FormatFloat32:
		return 32
	}
	return 0
}

// BytesPerSample returns the number of bytes used per sample for the format.
func (f SampleFormat) BytesPerSample() int {
	return f.BitsPerSample() / 8
}

func (f SampleFormat) String() string {
	switch f {
	case FormatPCM8:
		return "pcm_u8"
	case FormatPCM16:
		return "pcm_s16le"
	case FormatPCM24:
		return "pcm_s24le"
	case FormatPCM32:
		return "pcm_s32le"
	case FormatFloat32:
		return "pcm_f32le"
	}
	return fmt.Sprintf("unknown(%d)", int(f))
}

// PCMBuffer holds decoded uncompressed audio as per-channel float32 sample
// sequences. All channels have identical sample counts; sample values are
// scaled into [-1, 1] according to the source format.
type PCMBuffer struct {
	SampleRate int
	Format     SampleFormat
	Channels   [][]float32
}

// NumChannels returns the channel count of the buffer.
func (b *PCMBuffer) NumChannels() int {
	return len(b.Channels)
}

// NumSamples returns the per-channel sample count of the buffer.
func (b *PCMBuffer) NumSamples() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer duration in seconds.
func (b *PCMBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.NumSamples()) / float64(b.SampleRate)
}

// WAV audio format codes from the fmt chunk.
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

type wavFormatChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// DecodeWAV parses a WAV byte buffer into a PCMBuffer. It walks the RIFF
// chunk list so containers with extra chunks (LIST, fact, ...) decode
// correctly, and accepts integer PCM at 8/16/24/32 bits as well as 32-bit
// IEEE float. All parse failures wrap ErrInvalidAudioFormat.
func DecodeWAV(data []byte) (*PCMBuffer, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: buffer too short (%d bytes)", ErrInvalidAudioFormat, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("%w: missing RIFF header", ErrInvalidAudioFormat)
	}
	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing WAVE format marker", ErrInvalidAudioFormat)
	}

	var fmtChunk *wavFormatChunk
	var pcmData []byte

	// Walk the chunk list. Chunks are 2-byte aligned; a chunk with an odd
	// size is followed by one padding byte.
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if chunkSize < 0 || body+chunkSize > len(data) {
			// Tolerate a truncated final data chunk; some encoders write a
			// placeholder size when streaming to a pipe.
			if chunkID == "data" {
				chunkSize = len(data) - body
			} else {
				return nil, fmt.Errorf("%w: chunk %q exceeds buffer bounds", ErrInvalidAudioFormat, chunkID)
			}
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too short (%d bytes)", ErrInvalidAudioFormat, chunkSize)
			}
			var fc wavFormatChunk
			if err := binary.Read(bytes.NewReader(data[body:body+16]), binary.LittleEndian, &fc); err != nil {
				return nil, fmt.Errorf("%w: failed to read fmt chunk: %v", ErrInvalidAudioFormat, err)
			}
			fmtChunk = &fc
		case "data":
			pcmData = data[body : body+chunkSize]
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if fmtChunk == nil {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalidAudioFormat)
	}
	if pcmData == nil {
		return nil, fmt.Errorf("%w: missing data chunk", ErrInvalidAudioFormat)
	}

	format, err := sampleFormatFromWAV(fmtChunk)
	if err != nil {
		return nil, err
	}

	if fmtChunk.NumChannels == 0 {
		return nil, fmt.Errorf("%w: channel count is zero", ErrInvalidAudioFormat)
	}
	if fmtChunk.SampleRate == 0 {
		return nil, fmt.Errorf("%w: sample rate is zero", ErrInvalidAudioFormat)
	}

	samples, err := DequantizeSamples(pcmData, format)
	if err != nil {
		return nil, err
	}

	channels, err := Deinterleave(samples, int(fmtChunk.NumChannels))
	if err != nil {
		return nil, err
	}

	return &PCMBuffer{
		SampleRate: int(fmtChunk.SampleRate),
		Format:     format,
		Channels:   channels,
	}, nil
}

// sampleFormatFromWAV maps a fmt chunk onto a SampleFormat.
func sampleFormatFromWAV(fc *wavFormatChunk) (SampleFormat, error) {
	switch fc.AudioFormat {
	case wavFormatPCM, wavFormatExtensible:
		switch fc.BitsPerSample {
		case 8:
			return FormatPCM8, nil
		case 16:
			return FormatPCM16, nil
		case 24:
			return FormatPCM24, nil
		case 32:
			return FormatPCM32, nil
		}
		return 0, fmt.Errorf("%w: unsupported PCM bit depth %d", ErrInvalidAudioFormat, fc.BitsPerSample)
	case wavFormatIEEEFloat:
		if fc.BitsPerSample != 32 {
			return 0, fmt.Errorf("%w: unsupported float bit depth %d", ErrInvalidAudioFormat, fc.BitsPerSample)
		}
		return FormatFloat32, nil
	}
	return 0, fmt.Errorf("%w: unsupported audio format code %d", ErrInvalidAudioFormat, fc.AudioFormat)
}

// EncodeWAV wraps raw 16-bit little-endian mono PCM bytes in a canonical
// 44-byte WAV header.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio data")
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even, got %d", len(pcm))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	const (
		numChannels   = uint16(1)
		bitsPerSample = uint16(16)
	)
	dataSize := uint32(len(pcm))

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(buf, binary.LittleEndian, numChannels)
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate)*uint32(numChannels)*uint32(bitsPerSample)/8)
	binary.Write(buf, binary.LittleEndian, numChannels*bitsPerSample/8)
	binary.Write(buf, binary.LittleEndian, bitsPerSample)

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)

	return buf.Bytes(), nil
}
