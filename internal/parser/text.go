package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextParser handles plain text. Blank lines separate paragraphs.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	o := newOutline(baseTitle(filename))
	var para []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			o.paragraph(strings.Join(para, "\n"))
			para = para[:0]
			continue
		}
		para = append(para, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	o.paragraph(strings.Join(para, "\n"))
	return o.done(), nil
}
