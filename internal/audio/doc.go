// Package audio implements WAV container parsing and the normalization
// pipeline that turns arbitrary PCM input into mono 16 kHz float32 samples.
package audio
