package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/stt-node/internal/audio"
)

// Config contains inference client configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// Client invokes a local inference server over HTTP. It implements Invoker:
// normalized samples are uploaded as a 16-bit WAV file together with the
// model identifier and chunking parameters, and the server's structured
// transcription is returned as-is.
type Client struct {
	config     Config
	logger     *slog.Logger
	httpClient *http.Client
	semaphore  chan struct{} // rate limiting

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// ClientStats represents client statistics.
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// errorResponse is the error envelope returned by the inference server.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewClient creates an inference HTTP client.
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		logger:     logger,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe uploads normalized samples for transcription. The model id is
// validated against the catalog before any request is made; an unknown id
// fails with ErrModelLoad.
func (c *Client) Transcribe(ctx context.Context, modelID string, samples []float32, opts Options) (*Result, error) {
	if !IsSupportedModel(modelID) {
		return nil, fmt.Errorf("%w: unknown model %q", ErrModelLoad, modelID)
	}

	// Acquire semaphore for rate limiting.
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	var lastErr error

	// Retry loop with exponential backoff.
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.doRequest(ctx, modelID, samples, opts)
		if err == nil {
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			return result, nil
		}

		lastErr = err

		if !c.isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return nil, lastErr
}

// doRequest performs a single HTTP request against the inference server.
func (c *Client) doRequest(ctx context.Context, modelID string, samples []float32, opts Options) (*Result, error) {
	body, contentType, err := c.createMultipartRequest(modelID, samples, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrInference, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create HTTP request: %v", ErrInference, err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: HTTP request failed: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrInference, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.classifyHTTPError(resp.StatusCode, respBody)
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response JSON: %v", ErrInference, err)
	}

	return &result, nil
}

// classifyHTTPError maps an error response onto the invoker error taxonomy.
// The server reports model loading failures with code "model_load_error".
func (c *Client) classifyHTTPError(statusCode int, body []byte) error {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		if envelope.Code == "model_load_error" {
			return fmt.Errorf("%w: %s", ErrModelLoad, envelope.Error)
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrInference, statusCode, envelope.Error)
	}
	return fmt.Errorf("%w: HTTP %d: %s", ErrInference, statusCode, string(body))
}

// createMultipartRequest builds the multipart/form-data body: the samples
// as a 16-bit 16 kHz WAV file plus the model and chunking fields.
func (c *Client) createMultipartRequest(modelID string, samples []float32, opts Options) (io.Reader, string, error) {
	pcm, err := audio.QuantizeSamples(samples, audio.FormatPCM16)
	if err != nil {
		return nil, "", fmt.Errorf("failed to quantize samples: %w", err)
	}
	wavData, err := audio.EncodeWAV(pcm, audio.TargetSampleRate)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode WAV: %w", err)
	}

	requestID := uuid.New().String()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", requestID+".wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"model":       modelID,
		"sample_rate": fmt.Sprintf("%d", audio.TargetSampleRate),
		"request_id":  requestID,
	}
	if opts.ChunkLengthSec > 0 {
		fields["chunk_length_s"] = fmt.Sprintf("%.1f", opts.ChunkLengthSec)
	}
	if opts.StrideLengthSec > 0 {
		fields["stride_length_s"] = fmt.Sprintf("%.1f", opts.StrideLengthSec)
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// isRetryableError determines whether a failed attempt is worth retrying.
// Model loading failures are not: the same model will fail again.
func (c *Client) isRetryableError(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}

	errStr := err.Error()

	if strings.Contains(errStr, "model load failed") {
		return false
	}

	// 5xx server errors and rate limiting are retryable.
	if strings.Contains(errStr, "HTTP 5") || strings.Contains(errStr, "HTTP 429") {
		return true
	}

	// Network and connection errors are typically transient.
	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "refused") {
		return true
	}

	return false
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}

// Close waits for all active requests to complete.
func (c *Client) Close() error {
	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}
	return nil
}
