// Package llm provides a provider-agnostic chat-completion client with
// retry support, schema-constrained output, input sanitization, and
// fire-and-forget cost accounting.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// maxInputChars caps the cumulative message content length. Requests over
// the ceiling are rejected locally and never reach the provider.
const maxInputChars = 50000

// maxOutputTokens caps the output token request. Larger requests are
// silently clamped rather than rejected, to bound per-call cost.
const maxOutputTokens = 4000

// defaultMaxTokens is used when a request does not specify a token limit.
const defaultMaxTokens = 200

// defaultTimeout is the wall-clock budget for a single provider call.
const defaultTimeout = 30 * time.Second

// Endpoint identifies the provider, base URL, and model for a client.
type Endpoint struct {
	// Provider is the registered provider name ("openai", "ollama", "anthropic").
	Provider string

	// URL is the provider base URL. Empty uses the provider default.
	URL string

	// Model is the model name sent to the provider and used for pricing.
	Model string

	// Temperature controls randomness. nil uses the provider default.
	Temperature *float64
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines a chat-completion request.
type Request struct {
	// Messages is the chat history to send. Must be non-empty.
	Messages []Message

	// Schema, when non-nil, requests schema-constrained output: the model
	// is forced to emit JSON validating against this JSON Schema.
	Schema json.RawMessage

	// MaxTokens limits response length. 0 uses defaultMaxTokens; values
	// above maxOutputTokens are clamped.
	MaxTokens int

	// Caller tags the cost ledger entry for this call
	// (e.g. "classify", "enhance-reading").
	Caller string
}

// TokenUsage holds the heuristic token estimates for a completed call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the chat-completion result.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the model that produced the response.
	Model string

	// Usage contains token estimates for cost accounting.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// Client is a provider-agnostic LLM client bound to a single endpoint.
type Client struct {
	endpoint    Endpoint
	httpClient  *http.Client
	retryConfig RetryConfig
	timeout     time.Duration
	logger      *slog.Logger
	pricing     map[string]Price

	// recorder optionally persists a cost entry per successful call.
	// If nil, cost recording is disabled.
	recorder CostRecorder

	// now is injectable for deterministic cost-entry dates in tests.
	now func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithTimeout sets the wall-clock budget for a single provider call.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.timeout = d
	}
}

// WithPricing overrides per-model prices. Models absent from the table cost zero.
func WithPricing(pricing map[string]Price) ClientOption {
	return func(client *Client) {
		client.pricing = pricing
	}
}

// WithCostRecorder enables cost accounting. Entries are written on a
// detached goroutine; recorder failures are logged and never surfaced.
func WithCostRecorder(r CostRecorder) ClientOption {
	return func(client *Client) {
		client.recorder = r
	}
}

// NewClient creates a new LLM client for the given endpoint.
func NewClient(endpoint Endpoint, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		retryConfig: DefaultRetryConfig(),
		timeout:     defaultTimeout,
		httpClient:  &http.Client{},
		logger:      slog.Default(),
		pricing:     DefaultPricing,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model returns the model name the client is bound to.
func (c *Client) Model() string {
	return c.endpoint.Model
}

// Complete sends a completion request, handling sanitization, size limits,
// retry, and cost recording.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, NewFatalError(fmt.Errorf("at least one message is required"))
	}

	totalInput := 0
	for _, msg := range req.Messages {
		totalInput += len(msg.Content)
	}
	if totalInput > maxInputChars {
		return nil, NewFatalError(fmt.Errorf("%w: %d characters (max %d)", ErrInputTooLarge, totalInput, maxInputChars))
	}

	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.MaxTokens > maxOutputTokens {
		c.logger.Warn("Requested token limit exceeds maximum, clamping",
			"requested", req.MaxTokens,
			"max", maxOutputTokens)
		req.MaxTokens = maxOutputTokens
	}

	messages := sanitizeMessages(req.Messages)

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, messages, req)
		if err == nil {
			c.recordCost(ctx, req.Caller, messages, resp)
			return resp, nil
		}

		lastErr = err

		if IsFatal(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				// Continue to retry
			}
		}
	}

	return nil, fmt.Errorf("all attempts failed for model %s: %w", c.endpoint.Model, lastErr)
}

// recordCost writes a cost ledger entry on a detached goroutine. The entry
// must never block or fail the primary response path, so the goroutine gets
// a context that survives the caller's cancellation and its errors are only
// logged.
func (c *Client) recordCost(ctx context.Context, caller string, messages []Message, resp *Response) {
	entry := buildCostEntry(caller, c.endpoint.Model, messages, resp.Content, c.pricing, c.now())
	resp.Usage.PromptTokens = entry.InputTokens
	resp.Usage.CompletionTokens = entry.OutputTokens
	resp.Usage.TotalTokens = entry.InputTokens + entry.OutputTokens

	if c.recorder == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		recordCtx, cancel := context.WithTimeout(detached, 10*time.Second)
		defer cancel()

		if err := c.recorder.Record(recordCtx, entry); err != nil {
			c.logger.Warn("Failed to record LLM cost",
				"endpoint", entry.Endpoint,
				"model", entry.Model,
				"error", err)
		}
	}()
}

// calculateBackoff computes exponential backoff duration with jitter.
// Jitter prevents thundering herd when multiple clients retry simultaneously.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	// Add jitter: +/- 25% to prevent synchronized retries
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// doRequest executes a single HTTP request against the endpoint.
func (c *Client) doRequest(ctx context.Context, messages []Message, req Request) (*Response, error) {
	provider := GetProvider(c.endpoint.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", c.endpoint.Provider))
	}

	url := provider.BuildURL(c.endpoint.URL)

	body, err := provider.BuildRequestBody(c.endpoint.Model, messages, c.endpoint.Temperature, req.MaxTokens, req.Schema)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending LLM request",
		"provider", c.endpoint.Provider,
		"model", c.endpoint.Model,
		"url", url,
		"messages", len(messages),
		"structured", req.Schema != nil)

	// Each attempt gets its own wall-clock budget.
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The parent context ending is a caller decision, not a timeout.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, NewFatalError(fmt.Errorf("%w after %s", ErrTimeout, c.timeout))
		}
		return nil, NewTransientError(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer httpResp.Body.Close()

	// Read response body with size limit to prevent memory exhaustion.
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, NewFatalError(fmt.Errorf("%w after %s", ErrTimeout, c.timeout))
		}
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return provider.ParseResponse(respBody, c.endpoint.Model)
}

// classifyHTTPError maps provider status codes to coarse error categories.
// The raw body is logged for operators but never included in the returned
// error, so provider details cannot leak to API callers.
func (c *Client) classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}
	c.logger.Error("LLM API error",
		"provider", c.endpoint.Provider,
		"status", statusCode,
		"body", bodyStr)

	switch {
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		return NewFatalError(ErrAuth)
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(ErrRateLimited)
	case statusCode >= 500:
		return NewTransientError(ErrUnavailable)
	default:
		return NewFatalError(fmt.Errorf("%w (status %d)", ErrUpstream, statusCode))
	}
}
