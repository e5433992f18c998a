package audio

import (
	"path"
	"strings"
)

// Classification is the result of probing an input's declared format.
type Classification int

const (
	// AlreadyPCM means the input is passed through to the WAV parser as-is.
	AlreadyPCM Classification = iota
	// NeedsTranscode means the input must go through the transcoding engine
	// before it can be parsed as PCM.
	NeedsTranscode
)

func (c Classification) String() string {
	if c == NeedsTranscode {
		return "needs_transcode"
	}
	return "already_pcm"
}

// MIME types and extensions of the MPEG audio family, the only compressed
// formats currently routed through the transcoder.
var mpegMIMETypes = map[string]bool{
	"audio/mpeg": true,
	"audio/mp3":  true,
}

// Classify inspects a declared MIME type and/or filename and decides
// whether the payload needs transcoding. The policy is deliberately
// fail-open: anything not recognized as MPEG audio is classified AlreadyPCM
// and handed to the WAV parser, which surfaces the assumption failure as
// ErrInvalidAudioFormat if the bytes are not actually WAV.
func Classify(mimeType, fileName string) Classification {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	// Strip parameters like "; charset=binary".
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mpegMIMETypes[mt] {
		return NeedsTranscode
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	if ext == "mp3" {
		return NeedsTranscode
	}

	return AlreadyPCM
}
