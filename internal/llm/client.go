// Package llm is the client for the OpenAI-compatible text-generation
// provider that produces raw recommendation text.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/shelfmate/shelfmate-server/internal/metrics"
	"github.com/shelfmate/shelfmate-server/internal/normalize"
	"github.com/shelfmate/shelfmate-server/internal/ratelimit"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 500
	DefaultTemperature = 0.7

	defaultTimeout = 60 * time.Second
	defaultRPS     = 1.0
	defaultBurst   = 3

	breakerName = "llm-chat"
	tripAfter   = 5 // consecutive failures
)

// Config configures the client. Zero values fall back to defaults.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// RequestsPerSecond caps outbound calls per model.
	RequestsPerSecond float64

	// BreakerTimeout is how long the circuit stays open before probing again.
	BreakerTimeout time.Duration
}

// Client sends single-turn prompts to a chat completions endpoint.
// Calls are rate limited and guarded by a circuit breaker.
type Client struct {
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	breaker *gobreaker.CircuitBreaker[string]
	logger  *slog.Logger

	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

// New creates a new text-generation client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	c := &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		limiter:     ratelimit.New(cfg.RequestsPerSecond, defaultBurst),
		logger:      logger,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		// A caller giving up or sending a bad prompt says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, ErrBadRequest)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return c
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// CircuitOpen reports whether the breaker is currently rejecting calls.
func (c *Client) CircuitOpen() bool {
	return c.breaker.State() == gobreaker.StateOpen
}

// Complete sends prompt as a single user message and returns the content of
// the first choice. Transport failures, non-2xx responses, an open circuit,
// and empty responses are all returned as *Error.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx, c.model); err != nil {
		return "", c.wrap(0, "", fmt.Errorf("rate limit wait: %w", err))
	}

	start := time.Now()
	content, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, prompt)
	})
	metrics.RecordLLMRequest(time.Since(start), err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			return "", c.wrap(0, "", fmt.Errorf("%w: %v", ErrCircuitOpen, err))
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		var llmErr *Error
		if errors.As(err, &llmErr) {
			return "", err
		}
		return "", c.wrap(0, "", err)
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return content, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("llm request", "model", c.model, "prompt_chars", len(prompt))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", c.wrap(0, "", fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.wrap(resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.wrap(resp.StatusCode, providerMessage(body), statusError(resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", c.wrap(resp.StatusCode, "", fmt.Errorf("parse response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", c.wrap(resp.StatusCode, "", ErrEmptyResponse)
	}

	if parsed.Usage != nil {
		c.logger.Debug("llm response",
			"model", parsed.Model,
			"finish_reason", parsed.Choices[0].FinishReason,
			"completion_tokens", parsed.Usage.CompletionTokens,
		)
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) wrap(status int, detail string, err error) error {
	return &Error{Op: "complete", Model: c.model, StatusCode: status, Detail: detail, Err: err}
}

func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrServer
	case code >= 400:
		return ErrBadRequest
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

// providerMessage extracts the provider's error message, truncated for logs.
func providerMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return normalize.Truncate(e.Error.Message, 200)
	}
	return normalize.Truncate(strings.TrimSpace(string(body)), 200)
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
