package synth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DAMG7250-Team1/reportgen/internal/llm"
)

// sectionCompleter answers with the section name it finds in the prompt,
// after an optional per-section delay.
type sectionCompleter struct {
	delays map[string]time.Duration
	fail   map[string]error

	mu       sync.Mutex
	finished []string
	budgets  map[string]int
}

func (s *sectionCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	name := sectionName(prompt)
	if d := s.delays[name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	s.finished = append(s.finished, name)
	if s.budgets == nil {
		s.budgets = map[string]int{}
	}
	s.budgets[name] = maxTokens
	s.mu.Unlock()
	if err := s.fail[name]; err != nil {
		return "", err
	}
	return "body of " + name, nil
}

var _ llm.Completer = (*sectionCompleter)(nil)

func sectionName(prompt string) string {
	const marker = "Write the \""
	i := strings.Index(prompt, marker)
	if i < 0 {
		return "Report"
	}
	rest := prompt[i+len(marker):]
	return rest[:strings.Index(rest, "\"")]
}

func request(names ...string) Request {
	req := Request{Query: "lung cancer", LeanContext: "=== WEB ===\nfacts"}
	for _, n := range names {
		req.Sections = append(req.Sections, SectionSpec{Name: n, TokenBudget: 100})
	}
	return req
}

func TestPerSection_OrderUnderConcurrency(t *testing.T) {
	comp := &sectionCompleter{delays: map[string]time.Duration{"A": 50 * time.Millisecond}}
	p := NewPerSection(comp, 4, nil)

	got, err := p.Synthesize(context.Background(), request("A", "B", "C"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comp.finished[0] == "A" {
		t.Fatalf("expected A to finish after the others, finished %v", comp.finished)
	}
	for i, want := range []string{"A", "B", "C"} {
		if got[i].Name != want {
			t.Errorf("section %d: expected %s, got %s", i, want, got[i].Name)
		}
		if got[i].Text != "body of "+want {
			t.Errorf("section %s: unexpected text %q", want, got[i].Text)
		}
	}
	if comp.budgets["B"] != 100 {
		t.Errorf("expected section budget passed as max tokens, got %d", comp.budgets["B"])
	}
}

func TestPerSection_FailureBecomesPlaceholder(t *testing.T) {
	comp := &sectionCompleter{fail: map[string]error{"B": errors.New("model overloaded")}}
	got, err := NewPerSection(comp, 2, nil).Synthesize(context.Background(), request("A", "B"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got[1].Degraded {
		t.Error("expected section B to be degraded")
	}
	want := `[Section "B" could not be generated: model overloaded]`
	if got[1].Text != want {
		t.Errorf("expected %q, got %q", want, got[1].Text)
	}
	if got[0].Degraded {
		t.Error("section A should not be degraded")
	}
}

func TestPerSection_CancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	comp := &sectionCompleter{delays: map[string]time.Duration{"A": time.Second}}
	_, err := NewPerSection(comp, 1, nil).Synthesize(ctx, request("A", "B"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSinglePrompt_OneSection(t *testing.T) {
	comp := &sectionCompleter{}
	got, err := NewSinglePrompt(comp, nil).Synthesize(context.Background(), request("A", "B", "C"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Report" {
		t.Fatalf("expected a single Report section, got %+v", got)
	}
	if comp.budgets["Report"] != 300 {
		t.Errorf("expected summed budget 300, got %d", comp.budgets["Report"])
	}
}

func TestSectionPrompt(t *testing.T) {
	req := request("Methods")
	req.Date = "2026-01-02"
	p := SectionPrompt(req, req.Sections[0])
	for _, want := range []string{`"Methods"`, "lung cancer", "=== WEB ===", "2026-01-02", "under 75 words"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestNew(t *testing.T) {
	for name, want := range map[string]string{"": StrategyPerSection, "per_section": StrategyPerSection, "single_prompt": StrategySinglePrompt} {
		s, err := New(name, &sectionCompleter{}, 2, nil)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if s.Name() != want {
			t.Errorf("New(%q).Name() = %s, want %s", name, s.Name(), want)
		}
	}
	if _, err := New("bogus", nil, 1, nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestDefaultSections(t *testing.T) {
	secs := DefaultSections()
	if len(secs) == 0 || secs[0].Name != "Executive Summary" {
		t.Fatalf("unexpected default outline %+v", secs)
	}
	for _, s := range secs {
		if s.TokenBudget <= 0 {
			t.Errorf("section %s has no budget", s.Name)
		}
	}
}
