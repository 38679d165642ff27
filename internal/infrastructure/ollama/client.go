package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"WikiTracker/internal/config"
	"WikiTracker/internal/domain"
	"WikiTracker/internal/ports"
)

const maxErrorBody = 4 << 10

// Client implements ports.Generator against Ollama's /api/generate endpoint.
type Client struct {
	endpoint   string
	model      string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Generator = (*Client)(nil)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// NewClient builds a client from configuration. A zero timeout leaves requests unbounded.
func NewClient(cfg config.OllamaConfig, log *slog.Logger) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Model reports the model identifier sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Generate sends one non-streamed completion request, retrying up to maxRetries times.
// Every failure is returned as *domain.InferenceError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.httpClient == nil {
		return "", &domain.InferenceError{Err: errors.New("ollama client is nil")}
	}
	if c.endpoint == "" || c.model == "" {
		return "", &domain.InferenceError{Err: errors.New("ollama client misconfigured")}
	}

	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", &domain.InferenceError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.retryDelay); err != nil {
				return "", &domain.InferenceError{Err: err}
			}
		}

		text, err := c.post(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		c.debug("generate attempt failed", "attempt", attempt+1, "of", c.maxRetries+1, "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	return "", lastErr
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &domain.InferenceError{Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.InferenceError{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &domain.InferenceError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(payload)),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.InferenceError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Response == nil {
		return "", &domain.InferenceError{Err: domain.ErrMissingResponse}
	}

	return *out.Response, nil
}

func (c *Client) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
