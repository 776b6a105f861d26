// Package synth turns a lean context into report sections.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DAMG7250-Team1/reportgen/internal/chunker"
	"github.com/DAMG7250-Team1/reportgen/internal/llm"
)

const (
	StrategyPerSection   = "per_section"
	StrategySinglePrompt = "single_prompt"
)

// SectionSpec names one report section and its output budget.
type SectionSpec struct {
	Name        string `yaml:"name" json:"name"`
	TokenBudget int    `yaml:"token_budget" json:"token_budget"`
}

// ReportSection is a generated section. Degraded sections carry a
// placeholder body instead of model output.
type ReportSection struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Request is everything a strategy needs to write a report.
type Request struct {
	Query       string
	Date        string
	LeanContext string
	Sections    []SectionSpec
}

// Strategy produces report sections in the order of Request.Sections.
type Strategy interface {
	Name() string
	Synthesize(ctx context.Context, req Request) ([]ReportSection, error)
}

// DefaultSections is the outline used when no layout file is configured.
func DefaultSections() []SectionSpec {
	return []SectionSpec{
		{Name: "Executive Summary", TokenBudget: 600},
		{Name: "Abstract", TokenBudget: 400},
		{Name: "Introduction", TokenBudget: 700},
		{Name: "Methods", TokenBudget: 800},
		{Name: "Results", TokenBudget: 1500},
		{Name: "Discussion", TokenBudget: 800},
		{Name: "Conclusion", TokenBudget: 500},
		{Name: "References", TokenBudget: 500},
	}
}

// New returns the strategy registered under name.
func New(name string, client llm.Completer, maxConcurrent int, log *slog.Logger) (Strategy, error) {
	if log == nil {
		log = slog.Default()
	}
	switch name {
	case "", StrategyPerSection:
		return NewPerSection(client, maxConcurrent, log), nil
	case StrategySinglePrompt:
		return NewSinglePrompt(client, log), nil
	default:
		return nil, fmt.Errorf("unknown synthesis strategy %q", name)
	}
}

// Placeholder is the body of a section that could not be generated.
func Placeholder(name string, err error) string {
	return fmt.Sprintf("[Section %q could not be generated: %s]", name, err)
}

const framing = "You are a research assistant writing a peer-reviewed style report. " +
	"Use formal academic English and adopt \"we\" to describe analyses. " +
	"Base every claim on the supplied data and cite sources inline where possible."

// SectionPrompt builds the prompt for one section.
func SectionPrompt(req Request, spec SectionSpec) string {
	var sb strings.Builder
	sb.WriteString(framing)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Write the %q section of a report answering the query below. ", spec.Name)
	if spec.TokenBudget > 0 {
		fmt.Fprintf(&sb, "Keep it under %d words. ", chunker.WordsForTokens(spec.TokenBudget))
	}
	sb.WriteString("Output only the section body, without the heading.\n\n")
	fmt.Fprintf(&sb, "Query:\n%s\n\n", req.Query)
	if req.Date != "" {
		fmt.Fprintf(&sb, "Date: %s\n\n", req.Date)
	}
	fmt.Fprintf(&sb, "Available data:\n%s\n", req.LeanContext)
	return sb.String()
}

// ReportPrompt builds the one-shot prompt covering every section.
func ReportPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(framing)
	sb.WriteString("\n\nWrite a complete report answering the query below. Use these sections, in order, each as a level-two Markdown heading:\n")
	for i, s := range req.Sections {
		fmt.Fprintf(&sb, "%d. %s", i+1, s.Name)
		if s.TokenBudget > 0 {
			fmt.Fprintf(&sb, " (under %d words)", chunker.WordsForTokens(s.TokenBudget))
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nQuery:\n%s\n\n", req.Query)
	if req.Date != "" {
		fmt.Fprintf(&sb, "Date: %s\n\n", req.Date)
	}
	fmt.Fprintf(&sb, "Available data:\n%s\n", req.LeanContext)
	return sb.String()
}

// PerSection writes every section with its own call. Sections run
// concurrently and are returned in request order.
type PerSection struct {
	client        llm.Completer
	maxConcurrent int
	log           *slog.Logger
}

func NewPerSection(client llm.Completer, maxConcurrent int, log *slog.Logger) *PerSection {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &PerSection{client: client, maxConcurrent: maxConcurrent, log: log}
}

func (p *PerSection) Name() string { return StrategyPerSection }

// Synthesize returns one section per spec. A failed section gets a
// placeholder body; only cancellation of ctx fails the whole call.
func (p *PerSection) Synthesize(ctx context.Context, req Request) ([]ReportSection, error) {
	type sectionResult struct {
		text string
		err  error
		idx  int
	}
	results := make(chan sectionResult, len(req.Sections))
	sem := make(chan struct{}, p.maxConcurrent)

	for i, spec := range req.Sections {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		go func(i int, spec SectionSpec) {
			defer func() { <-sem }()
			out, err := p.client.Complete(ctx, SectionPrompt(req, spec), spec.TokenBudget)
			out = strings.TrimSpace(out)
			if err == nil && out == "" {
				err = errors.New("empty response")
			}
			results <- sectionResult{text: out, err: err, idx: i}
		}(i, spec)
	}

	sections := make([]ReportSection, len(req.Sections))
	for range req.Sections {
		r := <-results
		name := req.Sections[r.idx].Name
		if r.err != nil {
			p.log.Warn("section generation failed", "section", name, "error", r.err)
			sections[r.idx] = ReportSection{Name: name, Text: Placeholder(name, r.err), Degraded: true}
			continue
		}
		sections[r.idx] = ReportSection{Name: name, Text: r.text}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

// SinglePrompt writes the whole report in one call bounded by the summed
// section budgets.
type SinglePrompt struct {
	client llm.Completer
	log    *slog.Logger
}

func NewSinglePrompt(client llm.Completer, log *slog.Logger) *SinglePrompt {
	if log == nil {
		log = slog.Default()
	}
	return &SinglePrompt{client: client, log: log}
}

func (s *SinglePrompt) Name() string { return StrategySinglePrompt }

func (s *SinglePrompt) Synthesize(ctx context.Context, req Request) ([]ReportSection, error) {
	budget := 0
	for _, spec := range req.Sections {
		budget += spec.TokenBudget
	}
	out, err := s.client.Complete(ctx, ReportPrompt(req), budget)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("report generation failed", "error", err)
		return []ReportSection{{Name: "Report", Text: Placeholder("Report", err), Degraded: true}}, nil
	}
	return []ReportSection{{Name: "Report", Text: strings.TrimSpace(out)}}, nil
}
