// Package llm holds the language-model collaborators: completion and
// embedding providers, and the rate-limited Client every call goes through.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Completer generates text for a prompt, bounded by maxTokens.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// InferenceError is a completion failure that is not a throttling signal.
// It is never retried.
type InferenceError struct {
	Provider   string
	StatusCode int // Zero when the failure happened before a response.
	Err        error
}

func (e *InferenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s inference failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s inference failed: %v", e.Provider, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// EmbeddingServiceError means vectors could not be obtained for a ranking
// operation.
type EmbeddingServiceError struct {
	Err error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service unavailable: %v", e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// IsEmbeddingFailure reports whether err is an *EmbeddingServiceError.
func IsEmbeddingFailure(err error) bool {
	var ee *EmbeddingServiceError
	return errors.As(err, &ee)
}
