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
)

type openAIClient struct {
	apiKey string
	base   string
	client *http.Client
	logger *slog.Logger

	mu       sync.RWMutex
	model    string
	defaults Options
}

func (c *openAIClient) Name() string {
	return fmt.Sprintf("OpenAI (%s)", c.currentModel())
}

func (c *openAIClient) currentModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *openAIClient) Reconfigure(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Model != "" {
		c.model = s.Model
	}
	c.defaults = s.options()
}

func (c *openAIClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	c.mu.RLock()
	opts = opts.withDefaults(c.defaults)
	model := c.model
	c.mu.RUnlock()
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a helpful assistant that answers questions about PDF documents."},
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
		"max_tokens":  opts.MaxTokens,
	}
	if opts.TopP > 0 {
		payload["top_p"] = opts.TopP
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("openai API error: %s (%s)", resp.Status, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Probe checks that the key is accepted by listing models.
func (c *openAIClient) Probe(ctx context.Context) (Status, error) {
	model := c.currentModel()
	req, err := c.newRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return Status{Model: model}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Status{Model: model}, fmt.Errorf("openai probe failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Status{Model: model}, fmt.Errorf("openai probe failed: %s", resp.Status)
	}
	c.logger.Debug("openai endpoint reachable", "base", c.base)
	return Status{Connected: true, Model: model}, nil
}

func (c *openAIClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}
