package tabular

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"WikiTracker/internal/domain"
	"WikiTracker/internal/ports"
	"WikiTracker/internal/sheet"
)

// Writer serializes the labelled table, replacing the destination atomically.
type Writer struct {
	registry *sheet.Registry
	path     string
	logger   *slog.Logger
}

var _ ports.TableWriter = (*Writer)(nil)

// NewWriter binds the output path to the codec registry.
func NewWriter(reg *sheet.Registry, path string, log *slog.Logger) *Writer {
	return &Writer{registry: reg, path: path, logger: log}
}

// Write encodes the table into a temp file next to the destination and renames it into place.
func (w *Writer) Write(ctx context.Context, table *domain.MergedTable) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if w.registry == nil {
		return "", errors.New("codec registry is not configured")
	}
	if table == nil {
		return "", errors.New("nothing to write")
	}

	codec, err := w.registry.ForPath(w.path)
	if err != nil {
		return "", fmt.Errorf("resolve codec: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".wikitracker-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := codec.Encode(tmp, ToSheet(table)); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("encode %s: %w", codec.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return "", fmt.Errorf("replace output: %w", err)
	}

	if w.logger != nil {
		w.logger.Debug("table written", "path", w.path, "codec", codec.Name(), "rows", table.Len())
	}
	return w.path, nil
}

// ToSheet lays out tracker columns, the joined description and the label. An existing
// needs_wiki_article tracker column is overwritten rather than repeated.
func ToSheet(table *domain.MergedTable) *sheet.Sheet {
	labelIdx := -1
	for i, name := range table.Columns {
		if name == domain.ColumnNeedsWikiArticle {
			labelIdx = i
		}
	}

	descColumn := table.DescriptionColumn
	if descColumn == "" {
		descColumn = domain.ColumnDescription
	}

	header := append(append([]string(nil), table.Columns...), descColumn)
	if labelIdx < 0 {
		header = append(header, domain.ColumnNeedsWikiArticle)
	}

	out := &sheet.Sheet{Header: header, Records: make([][]string, 0, len(table.Rows))}
	for _, row := range table.Rows {
		record := make([]string, 0, len(header))
		record = append(record, row.Tracker.Values...)
		for len(record) < len(table.Columns) {
			record = append(record, "")
		}
		record = append(record, row.Description.String)
		if labelIdx < 0 {
			record = append(record, string(row.Label))
		} else {
			record[labelIdx] = string(row.Label)
		}
		out.Records = append(out.Records, record)
	}
	return out
}
