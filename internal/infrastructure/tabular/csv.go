package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"WikiTracker/internal/sheet"
)

const utf8BOM = "\ufeff"

// DelimitedCodec handles comma- and tab-separated files with a header row.
type DelimitedCodec struct {
	name       string
	comma      rune
	extensions []string
}

var _ sheet.Codec = (*DelimitedCodec)(nil)

// NewCSVCodec returns the comma-separated codec.
func NewCSVCodec() *DelimitedCodec {
	return &DelimitedCodec{name: "csv", comma: ',', extensions: []string{".csv"}}
}

// NewTSVCodec returns the tab-separated codec.
func NewTSVCodec() *DelimitedCodec {
	return &DelimitedCodec{name: "tsv", comma: '\t', extensions: []string{".tsv", ".tab"}}
}

// Name identifies the codec inside the registry.
func (c *DelimitedCodec) Name() string {
	return c.name
}

// Extensions lists the file suffixes this codec claims.
func (c *DelimitedCodec) Extensions() []string {
	return c.extensions
}

// Decode reads the header and all records. Short records are padded, long ones trimmed.
func (c *DelimitedCodec) Decode(r io.Reader) (*sheet.Sheet, error) {
	reader := csv.NewReader(r)
	reader.Comma = c.comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty %s file", c.name)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	out := &sheet.Sheet{Header: normalizeHeader(header)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(out.Records)+1, err)
		}
		out.Records = append(out.Records, fitRecord(record, len(out.Header)))
	}

	return out, nil
}

// Encode writes the header followed by every record.
func (c *DelimitedCodec) Encode(w io.Writer, s *sheet.Sheet) error {
	writer := csv.NewWriter(w)
	writer.Comma = c.comma

	if err := writer.Write(s.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := writer.WriteAll(s.Records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		out[i] = strings.TrimSpace(name)
	}
	return out
}

func fitRecord(record []string, width int) []string {
	if len(record) == width {
		return record
	}
	if len(record) > width {
		return record[:width]
	}
	padded := make([]string, width)
	copy(padded, record)
	return padded
}
