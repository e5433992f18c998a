// Package transcode converts compressed audio into uncompressed PCM WAV by
// driving an external transcoding engine as an isolated subprocess per call,
// with engine diagnostics captured into structured conversion errors.
package transcode
