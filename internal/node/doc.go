// Package node implements the speech-to-text work item executor: binary
// payload lookup, format classification, transcoding, normalization, and
// transcription, with per-item failure attribution.
package node
