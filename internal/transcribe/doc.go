// Package transcribe defines the speech-recognition invoker capability and
// an HTTP client implementation for a local inference server, with retry
// logic, rate limiting, and a fixed model catalog.
package transcribe
