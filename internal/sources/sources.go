// Package sources gathers the raw inputs of a report: tabular statistics,
// literature and web search results.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Kind classifies a SourceBlob.
type Kind string

const (
	KindTabular    Kind = "tabular"
	KindLiterature Kind = "literature"
	KindWeb        Kind = "web"
)

// SourceBlob is one rendered source ready for compression.
type SourceBlob struct {
	Label string
	Text  string
	Kind  Kind
}

// StatsProvider returns named result sets of tabular statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (map[string][]map[string]any, error)
}

// LiteratureProvider returns free text relevant to query.
type LiteratureProvider interface {
	Literature(ctx context.Context, query string) (string, error)
}

// WebProvider returns web search results relevant to query.
type WebProvider interface {
	Search(ctx context.Context, query string) ([]WebResult, error)
}

// Set is the collection of providers a report draws on. Nil providers are
// skipped.
type Set struct {
	Stats      StatsProvider
	Literature LiteratureProvider
	Web        WebProvider
	Log        *slog.Logger
}

// Gather fetches every source and renders it. Blobs come back in a fixed
// order: statistics, literature, then one blob per web category. A
// provider error fails the whole call.
func (s Set) Gather(ctx context.Context, query string) ([]SourceBlob, error) {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	var blobs []SourceBlob

	if s.Stats != nil {
		stats, err := s.Stats.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch statistics: %w", err)
		}
		text, err := RenderTabular(stats)
		if err != nil {
			return nil, fmt.Errorf("render statistics: %w", err)
		}
		blobs = append(blobs, SourceBlob{Label: "Structured Data", Text: text, Kind: KindTabular})
	}

	if s.Literature != nil {
		text, err := s.Literature.Literature(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("fetch literature: %w", err)
		}
		blobs = append(blobs, SourceBlob{Label: "Research Literature", Text: text, Kind: KindLiterature})
	}

	if s.Web != nil {
		results, err := s.Web.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("fetch web results: %w", err)
		}
		blobs = append(blobs, WebBlobs(results)...)
	}

	log.Info("sources gathered", "blobs", len(blobs))
	return blobs, nil
}

// RenderTabular renders result sets as indented JSON with sorted keys.
// Nil result sets render as empty arrays.
func RenderTabular(stats map[string][]map[string]any) (string, error) {
	norm := make(map[string][]map[string]any, len(stats))
	for name, rows := range stats {
		if rows == nil {
			rows = []map[string]any{}
		}
		norm[name] = rows
	}
	out, err := json.MarshalIndent(norm, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// WebBlobs renders results as one blob per category, in first-seen order.
func WebBlobs(results []WebResult) []SourceBlob {
	var order []string
	byCat := map[string][]WebResult{}
	for _, r := range results {
		cat := r.Category
		if cat == "" {
			cat = "Web Results"
		}
		if _, ok := byCat[cat]; !ok {
			order = append(order, cat)
		}
		byCat[cat] = append(byCat[cat], r)
	}
	blobs := make([]SourceBlob, 0, len(order))
	for _, cat := range order {
		blobs = append(blobs, SourceBlob{Label: cat, Text: RenderWeb(byCat[cat]), Kind: KindWeb})
	}
	return blobs
}

// RenderWeb renders results as blank-line separated blocks of
// Title, Description, extracted fields and Link.
func RenderWeb(results []WebResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Title: %s\n", r.Title)
		if r.Description != "" {
			fmt.Fprintf(&sb, "Description: %s\n", r.Description)
		}
		for _, f := range r.Fields {
			fmt.Fprintf(&sb, "%s: %s\n", f.Name, f.Value)
		}
		fmt.Fprintf(&sb, "Link: %s", r.URL)
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}
