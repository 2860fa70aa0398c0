// Package llm implements the language-model collaborator over an
// OpenAI-compatible chat completion API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/salescout/discovery/internal/discovery"
)

const defaultTimeout = 60 * time.Second

// Client calls an OpenAI-compatible chat endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ discovery.LLMClient = (*Client)(nil)

// Config holds the connection settings for the chat endpoint.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// NewClient builds a Client from configuration.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ModelName reports the configured model identifier.
func (c *Client) ModelName() string { return c.model }

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	WebSearch      bool          `json:"web_search_options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Citations []string `json:"citations,omitempty"`
}

// Generate posts the prompt and returns the raw model text plus usage. The
// request timeout bounds the whole round trip.
func (c *Client) Generate(ctx context.Context, req discovery.GenerateRequest) (discovery.GenerateResponse, error) {
	if c.endpoint == "" || c.model == "" {
		return discovery.GenerateResponse{}, fmt.Errorf("llm client misconfigured")
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: req.Prompt},
		},
		WebSearch: req.WebSearch,
	}
	if req.JSONMode {
		payload.ResponseFormat = &respFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return discovery.GenerateResponse{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return discovery.GenerateResponse{}, fmt.Errorf("new request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return discovery.GenerateResponse{}, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return discovery.GenerateResponse{}, fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return discovery.GenerateResponse{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return discovery.GenerateResponse{}, fmt.Errorf("chat response has no choices")
	}

	out := discovery.GenerateResponse{
		Text: decoded.Choices[0].Message.Content,
		Usage: discovery.TokenUsage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
		},
	}
	if req.WebSearch && len(decoded.Citations) > 0 {
		out.Grounding = &discovery.GroundingMetadata{Sources: decoded.Citations}
	}
	return out, nil
}
