package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"skyfeed/internal/config"
	"skyfeed/internal/model"
)

// Generator produces article content for a prompt. The remote service
// is opaque: possibly slow, possibly failing.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*model.GeneratedContent, error)
}

// Client talks to the article-generation HTTP API.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Generator = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.GeneratorConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Std(),
		},
	}
}

// Generate posts the prompt and decodes the structured result.
func (c *Client) Generate(ctx context.Context, prompt string) (*model.GeneratedContent, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("generator client misconfigured: no endpoint")
	}

	body, err := json.Marshal(map[string]string{
		"model":  c.model,
		"prompt": prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("generator error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var content model.GeneratedContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if content.SEOTitle == "" || content.HTML == "" {
		return nil, fmt.Errorf("generation response missing required fields")
	}

	return &content, nil
}
