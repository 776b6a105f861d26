package parser

import (
	"strings"
	"testing"
)

func TestTextParser_Paragraphs(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\n\n\nSecond paragraph.\n   \nThird paragraph."
	doc, err := (&TextParser{}).Parse(strings.NewReader(input), "notes/lung.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "lung" {
		t.Errorf("expected title %q, got %q", "lung", doc.Title)
	}
	if len(doc.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(doc.Sections))
	}
	want := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	if doc.Sections[0].Text != want {
		t.Errorf("expected %q, got %q", want, doc.Sections[0].Text)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	doc, err := (&TextParser{}).Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Sections) != 0 {
		t.Errorf("expected no sections, got %d", len(doc.Sections))
	}
	if doc.Text() != "" {
		t.Errorf("expected empty text, got %q", doc.Text())
	}
}

func TestMarkdownParser_Headings(t *testing.T) {
	input := `Preamble line.

# Title

Intro text with *emphasis*.

## Section A

- item one
- item two

## Section B

Section B content.
`
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "review.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d: %+v", len(doc.Sections), doc.Sections)
	}
	if doc.Sections[0].Heading != "" || doc.Sections[0].Text != "Preamble line." {
		t.Errorf("unexpected preamble %+v", doc.Sections[0])
	}
	if doc.Sections[1].Heading != "Title" || doc.Sections[1].Level != 1 {
		t.Errorf("unexpected h1 %+v", doc.Sections[1])
	}
	if !strings.Contains(doc.Sections[1].Text, "Intro text with emphasis.") {
		t.Errorf("expected inline text flattened, got %q", doc.Sections[1].Text)
	}
	if !strings.Contains(doc.Sections[2].Text, "item one") || !strings.Contains(doc.Sections[2].Text, "item two") {
		t.Errorf("expected list items, got %q", doc.Sections[2].Text)
	}
	if doc.Sections[3].Heading != "Section B" || doc.Sections[3].Level != 2 {
		t.Errorf("unexpected h2 %+v", doc.Sections[3])
	}
}

func TestMarkdownParser_EmptyHeadingKept(t *testing.T) {
	doc, err := (&MarkdownParser{}).Parse(strings.NewReader("# Only\n"), "x.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Sections) != 1 || doc.Sections[0].Heading != "Only" || doc.Sections[0].Text != "" {
		t.Errorf("unexpected sections %+v", doc.Sections)
	}
}

func TestHTMLParser(t *testing.T) {
	input := `<html><head><title>Trial Update</title><script>var x=1;</script></head>
<body><nav>Menu</nav>
<h1>Overview</h1><p>Phase   II results
are promising.</p>
<h2>Sites</h2><ul><li>Boston</li><li>Houston</li></ul>
<footer>Copyright</footer></body></html>`
	doc, err := (&HTMLParser{}).Parse(strings.NewReader(input), "page.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Trial Update" {
		t.Errorf("expected <title> text, got %q", doc.Title)
	}
	text := doc.Text()
	for _, want := range []string{"# Overview", "Phase II results are promising.", "## Sites", "Boston", "Houston"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in %q", want, text)
		}
	}
	for _, unwanted := range []string{"Menu", "Copyright", "var x"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("did not expect %q in %q", unwanted, text)
		}
	}
}

func TestCSVParser(t *testing.T) {
	input := "YEAR,COUNT\n2020,5\n2021,7\n"
	doc, err := (&CSVParser{}).Parse(strings.NewReader(input), "stats.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(doc.Sections))
	}
	s := doc.Sections[0]
	if s.Heading != "Rows 2-3" {
		t.Errorf("unexpected heading %q", s.Heading)
	}
	if !strings.Contains(s.Text, "YEAR: 2020, COUNT: 5") {
		t.Errorf("unexpected text %q", s.Text)
	}
}

func TestDocumentText(t *testing.T) {
	doc := &Document{Sections: []Section{
		{Text: "lead"},
		{Heading: "Results", Level: 2, Text: "body"},
		{Heading: "Empty", Level: 3},
	}}
	want := "lead\n\n## Results\n\nbody\n\n### Empty"
	if got := doc.Text(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.txt", "a.MD", "a.csv", "a.htm", "a.pdf", "a.docx"} {
		if _, err := ForFile(name); err != nil {
			t.Errorf("ForFile(%q): %v", name, err)
		}
		if !IsSupportedExtension(name) {
			t.Errorf("IsSupportedExtension(%q) = false", name)
		}
	}
	if _, err := ForFile("a.exe"); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if _, err := Extract(strings.NewReader("x"), "a.bin"); err == nil {
		t.Error("expected Extract to fail for unsupported extension")
	}
}
