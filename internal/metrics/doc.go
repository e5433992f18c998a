// Package metrics defines Prometheus metrics for the transcription node:
// per-item outcomes, audio pipeline timings, transcription invocations, and
// the monitoring HTTP API.
package metrics
