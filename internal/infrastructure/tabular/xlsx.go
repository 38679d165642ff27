package tabular

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"WikiTracker/internal/sheet"
)

const outputSheet = "Sheet1"

// metadataSheets are skipped when looking for the data sheet of a workbook.
var metadataSheets = map[string]bool{
	"info":     true,
	"metadata": true,
	"about":    true,
	"readme":   true,
	"notes":    true,
}

// XLSXCodec reads the first data sheet of a workbook and writes a single-sheet workbook.
type XLSXCodec struct{}

var _ sheet.Codec = (*XLSXCodec)(nil)

// NewXLSXCodec returns the Excel codec.
func NewXLSXCodec() *XLSXCodec {
	return &XLSXCodec{}
}

// Name identifies the codec inside the registry.
func (c *XLSXCodec) Name() string {
	return "xlsx"
}

// Extensions lists the file suffixes this codec claims.
func (c *XLSXCodec) Extensions() []string {
	return []string{".xlsx"}
}

// Decode opens the workbook and returns its data sheet.
func (c *XLSXCodec) Decode(r io.Reader) (*sheet.Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name := dataSheet(f.GetSheetList())
	if name == "" {
		return nil, errors.New("no sheets in workbook")
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", name)
	}

	out := &sheet.Sheet{Header: normalizeHeader(rows[0])}
	for _, row := range rows[1:] {
		out.Records = append(out.Records, fitRecord(row, len(out.Header)))
	}
	return out, nil
}

// Encode writes header and records into Sheet1.
func (c *XLSXCodec) Encode(w io.Writer, s *sheet.Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeRow(f, 1, s.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, record := range s.Records {
		if err := writeRow(f, i+2, record); err != nil {
			return fmt.Errorf("write record %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(outputSheet, cell, &cells)
}

func dataSheet(sheets []string) string {
	for _, name := range sheets {
		if !metadataSheets[strings.ToLower(name)] {
			return name
		}
	}
	if len(sheets) == 0 {
		return ""
	}
	return sheets[len(sheets)-1]
}
