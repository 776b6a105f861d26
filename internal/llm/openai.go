package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/DAMG7250-Team1/reportgen/internal/retry"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures an OpenAI-compatible provider.
type OpenAIOptions struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	System         string
	Temperature    float32
}

// OpenAIClient implements Completer and Embedder on the OpenAI API.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
	system         string
	temperature    float32
}

func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	return &OpenAIClient{
		client:         openai.NewClientWithConfig(cfg),
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
		system:         opts.System,
		temperature:    opts.Temperature,
	}
}

// Model returns the chat model name.
func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
	}
	if c.system != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.system})
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", &InferenceError{Provider: ProviderOpenAI, Err: errors.New("chat completion returned no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: texts,
	})
	if err != nil {
		if rl := asOpenAIRateLimit(err); rl != nil {
			return nil, rl
		}
		return nil, fmt.Errorf("create openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// classifyOpenAI maps a go-openai error onto the throttling signal or an
// InferenceError.
func classifyOpenAI(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if rl := asOpenAIRateLimit(err); rl != nil {
		return rl
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return &InferenceError{Provider: ProviderOpenAI, StatusCode: status, Err: err}
}

func asOpenAIRateLimit(err error) *retry.RateLimitError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || isQuotaCode(code) || isQuotaCode(apiErr.Type) {
			return &retry.RateLimitError{Provider: ProviderOpenAI, StatusCode: http.StatusTooManyRequests, Message: apiErr.Message}
		}
		return nil
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &retry.RateLimitError{Provider: ProviderOpenAI, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return nil
}

func isQuotaCode(code string) bool {
	switch strings.ToLower(code) {
	case "rate_limit_exceeded", "insufficient_quota", "requests", "tokens":
		return true
	}
	return false
}
