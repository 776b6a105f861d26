package sources

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

const tavilyURL = "https://api.tavily.com/search"

// SearchHit is one raw search engine result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Searcher runs a single search query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchHit, error)
}

// TavilySearch calls the Tavily search API.
type TavilySearch struct {
	apiKey string
	depth  string
	url    string
	client *http.Client
	policy retry.Policy
}

// TavilyOptions configures TavilySearch. Zero values pick defaults.
type TavilyOptions struct {
	APIKey string
	Depth  string // basic or advanced
	URL    string
	Policy retry.Policy
}

func NewTavilySearch(opts TavilyOptions) *TavilySearch {
	if opts.Depth != "basic" {
		opts.Depth = "advanced"
	}
	if opts.URL == "" {
		opts.URL = tavilyURL
	}
	return &TavilySearch{
		apiKey: opts.APIKey,
		depth:  opts.Depth,
		url:    opts.URL,
		client: &http.Client{Timeout: 30 * time.Second},
		policy: opts.Policy,
	}
}

// Search posts query to Tavily. HTTP 429 is retried with backoff.
func (t *TavilySearch) Search(ctx context.Context, query string, maxResults int) ([]SearchHit, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}
	payload, err := json.Marshal(map[string]any{
		"api_key":        t.apiKey,
		"query":          query,
		"search_depth":   t.depth,
		"include_answer": false,
		"max_results":    maxResults,
	})
	if err != nil {
		return nil, err
	}
	return retry.Do(ctx, t.policy, func(ctx context.Context) ([]SearchHit, error) {
		return t.post(ctx, payload)
	})
}

func (t *TavilySearch) post(ctx context.Context, payload []byte) ([]SearchHit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		rl := &retry.RateLimitError{Provider: "tavily", StatusCode: resp.StatusCode, Message: string(body)}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			rl.RetryAfter = time.Duration(secs) * time.Second
		}
		return nil, rl
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Results []SearchHit `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	return out.Results, nil
}

var _ Searcher = (*TavilySearch)(nil)
