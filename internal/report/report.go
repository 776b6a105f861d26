// Package report runs the full pipeline from a query to a finished
// document: gather sources, rank and compress them into a lean context,
// then synthesize the sections.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DAMG7250-Team1/reportgen/internal/chunker"
	"github.com/DAMG7250-Team1/reportgen/internal/llm"
	"github.com/DAMG7250-Team1/reportgen/internal/rank"
	"github.com/DAMG7250-Team1/reportgen/internal/sources"
	"github.com/DAMG7250-Team1/reportgen/internal/summarize"
	"github.com/DAMG7250-Team1/reportgen/internal/synth"
)

// Gatherer collects the rendered sources for a query.
type Gatherer interface {
	Gather(ctx context.Context, query string) ([]sources.SourceBlob, error)
}

// Ranker orders chunks by relevance to a query.
type Ranker interface {
	Rank(ctx context.Context, chunks []chunker.Chunk, query string, topK int) ([]rank.Scored, error)
}

// Summarizer compresses text into a word budget.
type Summarizer interface {
	Summarize(ctx context.Context, text, label string, budgetWords, maxDepth int) (summarize.Segment, error)
}

// Config holds the tunables of one pipeline.
type Config struct {
	ChunkWords    int  // Words per ranking chunk.
	TopK          int  // Chunks kept per source after ranking; <= 0 keeps all.
	RankFallback  bool // Use unranked chunks when embeddings fail.
	BudgetWords   int  // Word budget per compressed source.
	MaxDepth      int  // Summarization rounds per source.
	Compress      bool // False feeds raw sources to synthesis.
	MaxConcurrent int  // Sources compressed at once.
	Sections      []synth.SectionSpec
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ChunkWords:    300,
		TopK:          8,
		BudgetWords:   1200,
		MaxDepth:      3,
		Compress:      true,
		MaxConcurrent: 4,
		Sections:      synth.DefaultSections(),
	}
}

// Components are the collaborators a Generator drives.
type Components struct {
	Sources    Gatherer
	Ranker     Ranker
	Summarizer Summarizer
	Strategy   synth.Strategy
	Log        *slog.Logger
}

// Report is a finished document.
type Report struct {
	ID       string                `json:"id"`
	Query    string                `json:"query"`
	Title    string                `json:"title"`
	Date     string                `json:"date"`
	Sections []synth.ReportSection `json:"sections"`
	Degraded int                   `json:"degraded"` // Placeholder chunks and sections.
	Duration time.Duration         `json:"duration_ns"`
}

// Markdown renders the report with the title as a level-one heading and
// each section as level two. A single "Report" section is written as is.
func (r *Report) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# " + r.Title + "\n")
	for _, s := range r.Sections {
		sb.WriteString("\n")
		if !(len(r.Sections) == 1 && s.Name == "Report") {
			sb.WriteString("## " + s.Name + "\n\n")
		}
		sb.WriteString(strings.TrimSpace(s.Text))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Generator produces reports.
type Generator struct {
	cfg Config
	c   Components
	log *slog.Logger
	now func() time.Time
}

func New(cfg Config, c Components) *Generator {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if len(cfg.Sections) == 0 {
		cfg.Sections = synth.DefaultSections()
	}
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	return &Generator{cfg: cfg, c: c, log: log, now: time.Now}
}

// Config returns the generator settings.
func (g *Generator) Config() Config { return g.cfg }

// GenerateReport returns the report as Markdown. Failures are reported in
// the returned text instead of as an error.
func (g *Generator) GenerateReport(ctx context.Context, query string) string {
	r, err := g.Generate(ctx, query)
	if err != nil {
		return FailureText(query, err)
	}
	return r.Markdown()
}

// FailureText is the user-facing message for a failed report.
func FailureText(query string, err error) string {
	return fmt.Sprintf("Error generating report for \"%s\": %s", query, Reason(err))
}

// Reason describes err for a reader who does not care about wrapping.
func Reason(err error) string {
	switch {
	case llm.IsEmbeddingFailure(err):
		return "embedding service unavailable: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return err.Error()
}

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("query is empty")

// Generate runs the pipeline for query.
func (g *Generator) Generate(ctx context.Context, query string) (*Report, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := g.now()
	id := uuid.NewString()
	log := g.log.With("run_id", id)
	log.Info("report started", "query", query, "strategy", g.c.Strategy.Name(), "compress", g.cfg.Compress)

	blobs, err := g.c.Sources.Gather(ctx, query)
	if err != nil {
		return nil, err
	}

	var segments []summarize.Segment
	if g.cfg.Compress {
		segments, err = g.compressAll(ctx, log, query, blobs)
		if err != nil {
			return nil, err
		}
	} else {
		for _, b := range blobs {
			segments = append(segments, summarize.Segment{Label: b.Label, Text: b.Text, WordCount: chunker.WordCount(b.Text)})
		}
	}

	degraded := 0
	for _, s := range segments {
		degraded += s.Degraded
	}
	lean := LeanContext(segments)
	log.Info("lean context built", "sources", len(segments), "words", chunker.WordCount(lean), "degraded_chunks", degraded)

	date := start.Format("2006-01-02")
	sections, err := g.c.Strategy.Synthesize(ctx, synth.Request{
		Query:       query,
		Date:        date,
		LeanContext: lean,
		Sections:    g.cfg.Sections,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	for _, s := range sections {
		if s.Degraded {
			degraded++
		}
	}

	r := &Report{
		ID:       id,
		Query:    query,
		Title:    fmt.Sprintf("Research Report: %s (%s)", query, date),
		Date:     date,
		Sections: sections,
		Degraded: degraded,
		Duration: g.now().Sub(start),
	}
	log.Info("report complete", "sections", len(sections), "degraded", degraded, "duration_ms", r.Duration.Milliseconds())
	return r, nil
}

// compressAll compresses every blob with bounded concurrency and returns
// the segments in blob order. The first failure cancels the rest.
func (g *Generator) compressAll(ctx context.Context, log *slog.Logger, query string, blobs []sources.SourceBlob) ([]summarize.Segment, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type blobResult struct {
		seg summarize.Segment
		err error
		idx int
	}
	results := make(chan blobResult, len(blobs))
	sem := make(chan struct{}, g.cfg.MaxConcurrent)

	for i, b := range blobs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results <- blobResult{err: ctx.Err(), idx: i}
			continue
		}
		go func(i int, b sources.SourceBlob) {
			defer func() { <-sem }()
			seg, err := g.compress(ctx, log, query, b)
			results <- blobResult{seg: seg, err: err, idx: i}
		}(i, b)
	}

	segments := make([]summarize.Segment, len(blobs))
	var firstErr error
	for range blobs {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("source %q: %w", blobs[r.idx].Label, r.err)
				cancel()
			}
			continue
		}
		segments[r.idx] = r.seg
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return segments, nil
}

// compress ranks unstructured sources against the query, then summarizes
// the kept text into the word budget. Tabular data is only summarized.
func (g *Generator) compress(ctx context.Context, log *slog.Logger, query string, b sources.SourceBlob) (summarize.Segment, error) {
	text := b.Text
	if b.Kind != sources.KindTabular && g.c.Ranker != nil {
		chunks := chunker.Segment(b.Text, g.cfg.ChunkWords)
		kept, err := g.relevant(ctx, log, chunks, query, b.Label)
		if err != nil {
			return summarize.Segment{}, err
		}
		text = chunker.Join(kept, "\n")
	}
	return g.c.Summarizer.Summarize(ctx, text, b.Label, g.cfg.BudgetWords, g.cfg.MaxDepth)
}

func (g *Generator) relevant(ctx context.Context, log *slog.Logger, chunks []chunker.Chunk, query, label string) ([]chunker.Chunk, error) {
	scored, err := g.c.Ranker.Rank(ctx, chunks, query, g.cfg.TopK)
	if err == nil {
		return rank.Chunks(scored), nil
	}
	if !g.cfg.RankFallback || !llm.IsEmbeddingFailure(err) {
		return nil, err
	}
	log.Warn("ranking failed, using unranked chunks", "label", label, "error", err)
	if g.cfg.TopK > 0 && g.cfg.TopK < len(chunks) {
		chunks = chunks[:g.cfg.TopK]
	}
	return chunks, nil
}

// LeanContext joins segments under "=== LABEL ===" headers.
func LeanContext(segments []summarize.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, fmt.Sprintf("=== %s ===\n%s", strings.ToUpper(s.Label), strings.TrimSpace(s.Text)))
	}
	return strings.Join(parts, "\n\n")
}
