package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// OllamaConfig configures the Ollama generation client.
type OllamaConfig struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature *float64
}

// Ollama generates completions with a local Ollama server.
type Ollama struct {
	baseURL     string
	model       string
	temperature *float64
	client      *http.Client
	logger      *zap.Logger
}

func NewOllama(cfg OllamaConfig, logger *zap.Logger) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ollama{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

// Model returns the model name requests are sent for.
func (o *Ollama) Model() string { return o.model }

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	type options struct {
		Temperature *float64 `json:"temperature,omitempty"`
	}
	body := struct {
		Model   string   `json:"model"`
		Prompt  string   `json:"prompt"`
		Stream  bool     `json:"stream"`
		Options *options `json:"options,omitempty"`
	}{Model: o.model, Prompt: prompt}
	if o.temperature != nil {
		body.Options = &options{Temperature: o.temperature}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama generate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &e) == nil && e.Error != "" {
			return "", fmt.Errorf("ollama generate failed: %s: %s", resp.Status, e.Error)
		}
		return "", fmt.Errorf("ollama generate failed: %s", resp.Status)
	}
	var out struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("ollama generate: decode response: %w", err)
	}
	o.logger.Debug("generated response",
		zap.String("model", o.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("chars", len(out.Response)))
	return out.Response, nil
}
