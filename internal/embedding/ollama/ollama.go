package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Client is an embeddings client for an Ollama server. It also understands
// OpenAI-compatible response bodies, so it can sit behind a proxy that
// speaks either shape.
type Client struct {
	baseURL    string
	model      string
	dimension  atomic.Int64
	client     *http.Client
	maxRetries int
	sleep      func(context.Context, time.Duration) error
}

// Config configures the Ollama embeddings client.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 180 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: retries,
		sleep:      sleepCtx,
	}, nil
}

// Name returns the identifier of this embedder and its model.
func (c *Client) Name() string { return "ollama/" + c.model }

// Dimension returns the dimensionality observed on the first successful call.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", c.baseURL, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ollama ping failed: %s", resp.Status)
	}
	return nil
}

// Embed returns an embedding vector for the given text. 429 and 5xx
// responses and transport errors are retried with exponential backoff.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("ollama: empty input")
	}
	type reqBody struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	data, err := json.Marshal(reqBody{Model: c.model, Prompt: text})
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/api/embeddings"
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, lastDelay(lastErr, attempt-1)); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &retryableError{status: resp.Status, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("ollama embeddings failed: %s", resp.Status)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		v, err := decodeEmbedding(payload)
		if err != nil {
			return nil, err
		}
		c.dimension.CompareAndSwap(0, int64(len(v)))
		return v, nil
	}
	return nil, fmt.Errorf("ollama embeddings failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// decodeEmbedding accepts the Ollama-native shape {"embedding": [...]},
// the batch shape {"embeddings": [[...]]} and the OpenAI-compatible shape
// {"data": [{"embedding": [...]}]}.
func decodeEmbedding(payload []byte) ([]float32, error) {
	var out struct {
		Embedding  []float64   `json:"embedding"`
		Embeddings [][]float64 `json:"embeddings"`
		Data       []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	var v []float64
	switch {
	case len(out.Embedding) > 0:
		v = out.Embedding
	case len(out.Embeddings) > 0 && len(out.Embeddings[0]) > 0:
		v = out.Embeddings[0]
	case len(out.Data) > 0 && len(out.Data[0].Embedding) > 0:
		v = out.Data[0].Embedding
	default:
		return nil, errors.New("ollama: no embedding returned")
	}
	vec := make([]float32, len(v))
	for i := range v {
		vec[i] = float32(v[i])
	}
	return vec, nil
}

type retryableError struct {
	status     string
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return "ollama embeddings failed: " + e.status }

func lastDelay(err error, attempt int) time.Duration {
	var re *retryableError
	if errors.As(err, &re) && re.retryAfter > 0 {
		return re.retryAfter
	}
	return retryDelay(attempt)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 500 * time.Millisecond
	// exponential backoff capped at 10s
	d := base << attempt
	if d > 10*time.Second || d <= 0 {
		d = 10 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
