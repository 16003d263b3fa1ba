package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
	anthropicModel       = "claude-3-5-haiku-latest"
)

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	endpoint string
	client   *http.Client
}

// NewAnthropicClient creates a client; an empty endpoint uses the public API.
func NewAnthropicClient(endpoint string) *AnthropicClient {
	if endpoint == "" {
		endpoint = anthropicAPIEndpoint
	}
	return &AnthropicClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: MaxTimeout},
	}
}

type messageRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
}

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Options.APIKey) == "" {
		return "", ErrMissingAPIKey
	}

	model := req.Options.Model
	if model == "" {
		model = anthropicModel
	}

	// the messages API rejects system turns inside the list
	msgs := make([]Message, 0, len(req.History)+1)
	for _, m := range req.messages() {
		if m.Role == "system" {
			continue
		}
		msgs = append(msgs, m)
	}

	reqJSON, err := json.Marshal(messageRequest{
		Model:       model,
		MaxTokens:   req.Options.maxTokens(),
		Messages:    msgs,
		System:      req.SystemPrompt,
		Temperature: req.Options.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, req.Options.timeout())
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqJSON))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", req.Options.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "anthropic", Code: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var parsed messageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}

	var sb strings.Builder
	for _, content := range parsed.Content {
		if content.Type == "text" {
			sb.WriteString(content.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
