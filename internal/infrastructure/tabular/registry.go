package tabular

import "WikiTracker/internal/sheet"

// NewRegistry returns a registry with the CSV, TSV and XLSX codecs.
func NewRegistry() *sheet.Registry {
	reg := sheet.NewRegistry()
	reg.Register(NewCSVCodec())
	reg.Register(NewTSVCodec())
	reg.Register(NewXLSXCodec())
	return reg
}
