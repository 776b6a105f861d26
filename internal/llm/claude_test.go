package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DAMG7250-Team1/reportgen/internal/retry"
)

func newClaudeTestServer(t *testing.T, handler http.HandlerFunc) *ClaudeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClaudeClient(ClaudeOptions{APIKey: "k", Model: "claude-test", URL: srv.URL})
}

func TestClaudeComplete_JoinsTextBlocks(t *testing.T) {
	c := newClaudeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens != 77 {
			t.Errorf("expected max_tokens=77, got %d", req.MaxTokens)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}`))
	})

	got, err := c.Complete(context.Background(), "hi", 77)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "part one part two" {
		t.Errorf("unexpected completion %q", got)
	}
}

func TestClaudeComplete_429CarriesRetryAfter(t *testing.T) {
	c := newClaudeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow"}}`))
	})

	_, err := c.Complete(context.Background(), "hi", 10)
	var rl *retry.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter != 3*time.Second {
		t.Errorf("expected RetryAfter=3s, got %v", rl.RetryAfter)
	}
}

func TestClaudeComplete_ServerErrorNotThrottling(t *testing.T) {
	c := newClaudeTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`oops`))
	})

	_, err := c.Complete(context.Background(), "hi", 10)
	var ie *InferenceError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InferenceError, got %v", err)
	}
	if ie.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", ie.StatusCode)
	}
}
