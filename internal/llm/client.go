package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DAMG7250-Team1/reportgen/internal/retry"
)

// Client is the single path to the inference and embedding services. Every
// call is wrapped in retry.Do so throttling is retried with backoff and
// everything else surfaces immediately.
type Client struct {
	completer Completer
	embedder  Embedder
	policy    retry.Policy
	stats     *Stats
	log       *slog.Logger
}

// NewClient wraps the providers. embedder may be nil when no ranking is
// configured; Embed then fails with an EmbeddingServiceError.
func NewClient(completer Completer, embedder Embedder, policy retry.Policy, stats *Stats, log *slog.Logger) *Client {
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		completer: completer,
		embedder:  embedder,
		stats:     stats,
		log:       log,
	}
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.stats.Throttle()
		c.log.Warn("throttled, backing off", "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	c.policy = policy
	return c
}

// Stats returns the call statistics collected by this client.
func (c *Client) Stats() *Stats { return c.stats }

// Complete issues one completion through the backoff policy.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.completer == nil {
		return "", &InferenceError{Provider: "none", Err: errors.New("no completion provider configured")}
	}
	start := time.Now()
	out, err := retry.Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		return c.completer.Complete(ctx, prompt, maxTokens)
	})
	c.stats.Record(KindComplete, time.Since(start))
	if err != nil {
		c.stats.Fail()
		return "", classifyCompletion(err)
	}
	return out, nil
}

// Embed embeds texts in one batched request through the backoff policy.
// Failures other than cancellation are reported as *EmbeddingServiceError.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embedder == nil {
		return nil, &EmbeddingServiceError{Err: errors.New("no embedding provider configured")}
	}
	start := time.Now()
	vecs, err := retry.Do(ctx, c.policy, func(ctx context.Context) ([][]float32, error) {
		return c.embedder.Embed(ctx, texts)
	})
	c.stats.Record(KindEmbed, time.Since(start))
	if err != nil {
		c.stats.Fail()
		if isContextErr(err) || IsEmbeddingFailure(err) {
			return nil, err
		}
		return nil, &EmbeddingServiceError{Err: err}
	}
	return vecs, nil
}

// classifyCompletion leaves throttling, cancellation and typed inference
// errors alone and wraps anything else as an InferenceError.
func classifyCompletion(err error) error {
	var ie *InferenceError
	if retry.IsRateLimit(err) || isContextErr(err) || errors.As(err, &ie) {
		return err
	}
	return &InferenceError{Provider: "unknown", Err: err}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var (
	_ Completer = (*Client)(nil)
	_ Embedder  = (*Client)(nil)
	_ Completer = (*OpenAIClient)(nil)
	_ Embedder  = (*OpenAIClient)(nil)
	_ Completer = (*ClaudeClient)(nil)
)
