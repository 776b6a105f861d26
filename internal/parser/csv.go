package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// csvBatchRows is how many data rows share one section.
const csvBatchRows = 20

// CSVParser renders each row as "header: value" pairs.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	o := newOutline(baseTitle(filename))
	if len(records) < 2 {
		return o.done(), nil
	}

	headers, rows := records[0], records[1:]
	for start := 0; start < len(rows); start += csvBatchRows {
		end := min(start+csvBatchRows, len(rows))
		var sb strings.Builder
		for _, row := range rows[start:end] {
			pairs := make([]string, 0, len(row))
			for j, cell := range row {
				if j < len(headers) && headers[j] != "" {
					pairs = append(pairs, headers[j]+": "+cell)
				} else {
					pairs = append(pairs, cell)
				}
			}
			sb.WriteString(strings.Join(pairs, ", "))
			sb.WriteByte('\n')
		}
		// Row numbers are 1-indexed and skip the header line.
		o.heading(2, fmt.Sprintf("Rows %d-%d", start+2, end+1))
		o.paragraph(sb.String())
	}
	return o.done(), nil
}
