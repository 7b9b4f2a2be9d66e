package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultProbeAttempts = 3
	defaultProbeDelay    = 500 * time.Millisecond
)

type ollamaClient struct {
	host   string
	client *http.Client
	logger *slog.Logger

	probeTries uint
	probeDelay time.Duration

	mu        sync.RWMutex
	model     string
	defaults  Options
	connected bool
}

func (c *ollamaClient) Name() string {
	return fmt.Sprintf("Ollama (%s)", c.currentModel())
}

func (c *ollamaClient) currentModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *ollamaClient) Reconfigure(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Model != "" && s.Model != c.model {
		c.logger.Info("switching ollama model", "from", c.model, "to", s.Model)
		c.model = s.Model
	}
	c.defaults = s.options()
}

func (c *ollamaClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	c.mu.RLock()
	opts = opts.withDefaults(c.defaults)
	model := c.model
	c.mu.RUnlock()
	options := map[string]any{
		"temperature": opts.Temperature,
		"num_predict": opts.MaxTokens,
	}
	if opts.TopK > 0 {
		options["top_k"] = opts.TopK
	}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}
	payload := map[string]any{
		"model":   model,
		"prompt":  prompt,
		"stream":  false,
		"options": options,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ollama API error: %s (%s)", resp.Status, string(body))
	}

	var parsed struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(parsed.Response), nil
}

// Probe lists the installed models. When none of them contains the configured
// model name the first one is used from then on.
func (c *ollamaClient) Probe(ctx context.Context) (Status, error) {
	var models []string
	err := retry.Do(
		func() error {
			names, err := c.listModels(ctx)
			if err != nil {
				return err
			}
			models = names
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.probeTries),
		retry.Delay(c.probeDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("ollama probe retry", "attempt", n+1, "err", err)
		}),
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.connected = false
		return Status{Model: c.model}, fmt.Errorf("cannot reach ollama at %s: %w", c.host, err)
	}

	c.connected = true
	status := Status{Connected: true, Model: c.model, Available: models}
	if len(models) > 0 && !containsModel(models, c.model) {
		c.logger.Info("configured model not installed, using first available", "configured", c.model, "using", models[0])
		c.model = models[0]
		status.Model = c.model
		status.Substituted = true
	}
	return status, nil
}

func (c *ollamaClient) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ollama tags: %s", resp.Status)
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode ollama tags: %w", err)
	}
	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func containsModel(models []string, want string) bool {
	for _, name := range models {
		if strings.Contains(name, want) {
			return true
		}
	}
	return false
}
