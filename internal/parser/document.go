package parser

import (
	"strings"
)

// Document is the flat outline of a parsed file.
type Document struct {
	Title    string
	Sections []Section
}

// Section is a run of body text under an optional heading. Level is the
// heading depth (1-6), zero for body text before any heading.
type Section struct {
	Heading string
	Level   int
	Text    string
}

// Text renders the document as Markdown-like plain text.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, s := range d.Sections {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		if s.Heading != "" {
			sb.WriteString(strings.Repeat("#", max(s.Level, 1)))
			sb.WriteString(" ")
			sb.WriteString(s.Heading)
			if s.Text != "" {
				sb.WriteString("\n\n")
			}
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// outline accumulates paragraphs under the current heading.
type outline struct {
	doc   *Document
	head  string
	level int
	body  []string
	open  bool
}

func newOutline(title string) *outline {
	return &outline{doc: &Document{Title: title}}
}

func (o *outline) heading(level int, title string) {
	o.flush()
	o.head, o.level, o.open = title, level, true
}

func (o *outline) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	o.body = append(o.body, text)
	o.open = true
}

func (o *outline) flush() {
	if o.open {
		o.doc.Sections = append(o.doc.Sections, Section{
			Heading: o.head,
			Level:   o.level,
			Text:    strings.Join(o.body, "\n\n"),
		})
	}
	o.head, o.level, o.body, o.open = "", 0, nil, false
}

func (o *outline) done() *Document {
	o.flush()
	return o.doc
}
