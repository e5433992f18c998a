// Package server implements the HTTP API for monitoring the speech-to-text
// node: health checks, configuration inspection, processing statistics, and
// Prometheus metrics.
package server
