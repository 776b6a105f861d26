package sources

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DAMG7250-Team1/reportgen/internal/parser"
)

// CancerTypes are the query keywords used to pick focused literature.
var CancerTypes = []string{"brain", "blood", "skin", "lung", "breast"}

// DefaultMaxDocs caps how many documents one report reads.
const DefaultMaxDocs = 3

// DocSeparator sits between documents in the literature text.
const DocSeparator = "\n---\n"

// DirLiterature reads research documents from a local directory.
type DirLiterature struct {
	dir     string
	maxDocs int
	log     *slog.Logger
}

func NewDirLiterature(dir string, maxDocs int, log *slog.Logger) *DirLiterature {
	if maxDocs <= 0 {
		maxDocs = DefaultMaxDocs
	}
	if log == nil {
		log = slog.Default()
	}
	return &DirLiterature{dir: dir, maxDocs: maxDocs, log: log}
}

// Literature returns the text of up to maxDocs documents. Files whose name
// mentions the cancer type found in query are preferred; when none match,
// every supported file is a candidate. Files that fail to parse are
// skipped.
func (d *DirLiterature) Literature(ctx context.Context, query string) (string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return "", fmt.Errorf("read literature dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && parser.IsSupportedExtension(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		d.log.Warn("no literature files found", "dir", d.dir)
		return "", nil
	}

	selected := files
	if cancer := DetectCancerType(query); cancer != "" {
		var relevant []string
		for _, f := range files {
			if strings.Contains(strings.ToLower(f), cancer) {
				relevant = append(relevant, f)
			}
		}
		if len(relevant) > 0 {
			selected = relevant
		} else {
			d.log.Warn("no files for cancer type, using all", "cancer_type", cancer)
		}
	}
	if len(selected) > d.maxDocs {
		selected = selected[:d.maxDocs]
	}

	docs := make([]string, 0, len(selected))
	for _, name := range selected {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := d.readFile(filepath.Join(d.dir, name))
		if err != nil {
			d.log.Error("literature extraction failed", "file", name, "error", err)
			continue
		}
		if text != "" {
			docs = append(docs, text)
		}
	}
	d.log.Info("literature loaded", "candidates", len(selected), "documents", len(docs))
	return strings.Join(docs, DocSeparator), nil
}

func (d *DirLiterature) readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	doc, err := parser.Extract(f, path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Text()), nil
}

// DetectCancerType returns the first known cancer type mentioned in query.
func DetectCancerType(query string) string {
	q := strings.ToLower(query)
	for _, ct := range CancerTypes {
		if strings.Contains(q, ct) {
			return ct
		}
	}
	return ""
}
