package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Web result categories, used as lean context labels.
const (
	CategoryClinicalTrials   = "Clinical Trials"
	CategoryFunding          = "Funding Opportunities"
	CategoryTreatmentCenters = "Treatment Centers"
)

// Field is an attribute extracted from a search result.
type Field struct {
	Name  string
	Value string
}

// WebResult is a search hit annotated for one category.
type WebResult struct {
	Category    string
	Title       string
	Description string
	URL         string
	Fields      []Field
}

// DefaultMaxResults is the per-query result cap.
const DefaultMaxResults = 10

var (
	phaseRe    = regexp.MustCompile(`phase (i{1,3}|[1-3])`)
	statusRe   = regexp.MustCompile(`recruiting|completed|active`)
	addressRe  = regexp.MustCompile(`\d{1,5}\s+\w+[\w\s,]+`)
	ratingRe   = regexp.MustCompile(`(\d\.\d)\s*/\s*5`)
	locationRe = []*regexp.Regexp{
		regexp.MustCompile(`\bin ([A-Z][\w\s,]+)`),
		regexp.MustCompile(`\bat ([A-Z][\w\s,]+)`),
		regexp.MustCompile(`\bnear ([A-Z][\w\s,]+)`),
	}
)

// WebAgent runs the clinical trial, funding and treatment center searches
// for a query.
type WebAgent struct {
	search     Searcher
	maxResults int
	log        *slog.Logger
}

func NewWebAgent(search Searcher, maxResults int, log *slog.Logger) *WebAgent {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebAgent{search: search, maxResults: maxResults, log: log}
}

// Search runs every category search. A failed search is logged and
// contributes no results; only cancellation fails the call.
func (w *WebAgent) Search(ctx context.Context, query string) ([]WebResult, error) {
	searches := []struct {
		category string
		query    string
		extract  func(SearchHit) WebResult
	}{
		{CategoryClinicalTrials, fmt.Sprintf("active clinical trials %s cancer treatment", query), clinicalTrial},
		{CategoryFunding, fmt.Sprintf("cancer research funding opportunities for %s", query), funding},
		{CategoryTreatmentCenters, fmt.Sprintf("best cancer treatment centers in %s with address and rating", ExtractLocation(query)), treatmentCenter},
	}

	var out []WebResult
	for _, s := range searches {
		hits, err := w.search.Search(ctx, s.query, w.maxResults)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			w.log.Error("web search failed", "category", s.category, "error", err)
			continue
		}
		for _, h := range hits {
			r := s.extract(h)
			r.Category = s.category
			out = append(out, r)
		}
		w.log.Debug("web search", "category", s.category, "results", len(hits))
	}
	return out, nil
}

func clinicalTrial(h SearchHit) WebResult {
	phase, status := "Unknown", "Unknown"
	if m := phaseRe.FindString(strings.ToLower(h.Title + " " + h.Content)); m != "" {
		phase = titleCase(m)
	}
	if m := statusRe.FindString(strings.ToLower(h.Content)); m != "" {
		status = titleCase(m)
	}
	return WebResult{
		Title:       h.Title,
		Description: h.Content,
		URL:         h.URL,
		Fields:      []Field{{"Phase", phase}, {"Status", status}},
	}
}

func funding(h SearchHit) WebResult {
	return WebResult{Title: orUnknown(h.Title), Description: truncateRunes(h.Content, 200), URL: h.URL}
}

func treatmentCenter(h SearchHit) WebResult {
	address, rating := "Unknown address", "Unknown"
	if m := addressRe.FindString(h.Content); m != "" {
		address = strings.TrimSpace(m)
	}
	if m := ratingRe.FindStringSubmatch(h.Content); m != nil {
		rating = m[1]
	}
	return WebResult{
		Title:  orUnknown(h.Title),
		URL:    h.URL,
		Fields: []Field{{"Address", address}, {"Rating", rating}},
	}
}

// ExtractLocation finds a capitalized place after "in", "at" or "near",
// defaulting to the United States.
func ExtractLocation(query string) string {
	for _, re := range locationRe {
		if m := re.FindStringSubmatch(query); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return "United States"
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if strings.Trim(w, "i") == "" {
			// Roman numerals stay upper case.
			words[i] = strings.ToUpper(w)
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ WebProvider = (*WebAgent)(nil)
