package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct {
	// Comma overrides the field delimiter; spreadsheet tools in German locales expect ';'.
	Comma rune
}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Comma: ';'}
}

// ContentType is the MIME type of rendered output.
func (e *CSVExporter) ContentType() string {
	return "text/csv; charset=utf-8"
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if e.Comma != 0 {
		writer.Comma = e.Comma
	}
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName derives a download name from course names ("<language> <level> <alternative>").
// A single course keeps its own name; several courses of one language and level collapse
// to "<language> <level>", of one language to "<language>", otherwise "Kursliste".
func FileName(courseNames []string, ext string) string {
	base := "Kursliste"
	switch {
	case len(courseNames) == 1:
		base = courseNames[0]
	case len(courseNames) > 1:
		base = commonPrefix(courseNames)
	}
	base = strings.Map(func(r rune) rune {
		if r == '"' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, base)
	return base + "." + ext
}

func commonPrefix(names []string) string {
	ref := strings.Fields(names[0])
	if len(ref) < 2 {
		return "Kursliste"
	}
	sameLevel := true
	for _, name := range names[1:] {
		fields := strings.Fields(name)
		if len(fields) < 2 || fields[0] != ref[0] {
			return "Kursliste"
		}
		if fields[1] != ref[1] {
			sameLevel = false
		}
	}
	if sameLevel {
		return ref[0] + " " + ref[1]
	}
	return ref[0]
}
