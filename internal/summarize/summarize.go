// Package summarize compresses source text into a word budget by repeated
// chunk-wise summarization.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DAMG7250-Team1/reportgen/internal/chunker"
	"github.com/DAMG7250-Team1/reportgen/internal/llm"
	"github.com/DAMG7250-Team1/reportgen/internal/retry"
)

// Placeholder replaces a chunk whose summarization failed.
const Placeholder = "Summarization failed"

// Segment is one compressed source.
type Segment struct {
	Label     string
	Text      string
	WordCount int
	Rounds    int // Summarization rounds performed.
	Degraded  int // Chunks replaced by Placeholder.
}

// Summarizer issues summarization calls with bounded concurrency.
type Summarizer struct {
	client        llm.Completer
	maxConcurrent int
	log           *slog.Logger
}

func New(client llm.Completer, maxConcurrent int, log *slog.Logger) *Summarizer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{client: client, maxConcurrent: maxConcurrent, log: log}
}

// Prompt is the instruction sent for one chunk.
func Prompt(label string, budgetWords int, text string) string {
	return fmt.Sprintf("Summarize this %s section into no more than %d words:\n\n%s", label, budgetWords, text)
}

// Summarize shrinks text toward budgetWords words. Text already within
// budget is returned unchanged. Each round splits the current text into
// budget-sized chunks, summarizes every chunk and joins the results; rounds
// stop once the text fits or maxDepth rounds have run, in which case the
// last result is returned as is.
//
// A chunk that fails with anything other than throttling or cancellation is
// replaced by Placeholder. Throttling that outlasts the retry policy and
// context cancellation abort with an error.
func (s *Summarizer) Summarize(ctx context.Context, text, label string, budgetWords, maxDepth int) (Segment, error) {
	seg := Segment{Label: label, Text: text, WordCount: chunker.WordCount(text)}
	if budgetWords <= 0 {
		return seg, nil
	}
	log := s.log.With("label", label, "budget_words", budgetWords)

	for depth := 0; seg.WordCount > budgetWords && depth < maxDepth; depth++ {
		chunks := chunker.Segment(seg.Text, budgetWords)
		parts, degraded, err := s.round(ctx, log, chunks, label, budgetWords)
		if err != nil {
			return seg, fmt.Errorf("summarize %s (round %d): %w", label, depth+1, err)
		}
		seg.Text = strings.Join(parts, "\n")
		seg.WordCount = chunker.WordCount(seg.Text)
		seg.Rounds++
		seg.Degraded += degraded
		log.Debug("summarization round", "round", seg.Rounds, "chunks", len(chunks), "words", seg.WordCount)
	}

	if seg.WordCount > budgetWords {
		log.Warn("depth cap reached over budget", "words", seg.WordCount, "rounds", seg.Rounds)
	}
	return seg, nil
}

// round summarizes every chunk and returns the summaries in chunk order.
func (s *Summarizer) round(ctx context.Context, log *slog.Logger, chunks []chunker.Chunk, label string, budgetWords int) ([]string, int, error) {
	type chunkResult struct {
		text string
		err  error
		idx  int
	}
	results := make(chan chunkResult, len(chunks))
	sem := make(chan struct{}, s.maxConcurrent)
	maxTokens := chunker.TokensForWords(budgetWords)

	for _, c := range chunks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results <- chunkResult{err: ctx.Err(), idx: c.Index}
			continue
		}
		go func(c chunker.Chunk) {
			defer func() { <-sem }()
			out, err := s.client.Complete(ctx, Prompt(label, budgetWords, c.Text), maxTokens)
			results <- chunkResult{text: strings.TrimSpace(out), err: err, idx: c.Index}
		}(c)
	}

	parts := make([]string, len(chunks))
	degraded := 0
	var fatal error
	for range chunks {
		r := <-results
		if r.err == nil {
			parts[r.idx] = r.text
			continue
		}
		if isFatal(r.err) {
			if fatal == nil {
				fatal = r.err
			}
			continue
		}
		log.Warn("chunk summarization failed", "chunk", r.idx, "error", r.err)
		parts[r.idx] = Placeholder
		degraded++
	}
	if fatal != nil {
		return nil, degraded, fatal
	}
	return parts, degraded, nil
}

func isFatal(err error) bool {
	return retry.IsRateLimit(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
