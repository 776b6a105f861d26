package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DAMG7250-Team1/reportgen/internal/retry"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

// ClaudeClient implements Completer on the Anthropic Messages API.
type ClaudeClient struct {
	apiKey     string
	model      string
	system     string
	url        string
	httpClient *http.Client
}

// ClaudeOptions configures a ClaudeClient. URL defaults to the public
// Messages endpoint.
type ClaudeOptions struct {
	APIKey string
	Model  string
	System string
	URL    string
}

func NewClaudeClient(opts ClaudeOptions) *ClaudeClient {
	if opts.URL == "" {
		opts.URL = defaultAnthropicURL
	}
	return &ClaudeClient{
		apiKey: opts.APIKey,
		model:  opts.Model,
		system: opts.System,
		url:    opts.URL,
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
	}
}

// Model returns the configured model name.
func (c *ClaudeClient) Model() string { return c.model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ClaudeClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    c.system,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &InferenceError{Provider: ProviderAnthropic, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &InferenceError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var apiResp anthropicResponse
	decodeErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode == http.StatusTooManyRequests ||
		(apiResp.Error != nil && apiResp.Error.Type == "rate_limit_error") {
		return "", &retry.RateLimitError{
			Provider:   ProviderAnthropic,
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &InferenceError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: errors.New(truncate(string(respBody), 200))}
	}
	if decodeErr != nil {
		return "", &InferenceError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if apiResp.Error != nil {
		return "", &InferenceError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s: %s", apiResp.Error.Type, apiResp.Error.Message)}
	}

	var sb strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &InferenceError{Provider: ProviderAnthropic, StatusCode: resp.StatusCode, Err: errors.New("empty response from claude")}
	}
	return sb.String(), nil
}

// Close releases idle connections.
func (c *ClaudeClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
