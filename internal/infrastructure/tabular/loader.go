package tabular

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"WikiTracker/internal/config"
	"WikiTracker/internal/domain"
	"WikiTracker/internal/ports"
	"WikiTracker/internal/sheet"
)

// Suffixes applied when both tables carry a description column.
const (
	leftSuffix  = "_x"
	rightSuffix = "_y"
)

// Loader reads the description and tracker tables and left-joins them on video_title.
type Loader struct {
	registry     *sheet.Registry
	descriptions string
	tracker      string
	duplicates   string
	logger       *slog.Logger
}

var _ ports.TableLoader = (*Loader)(nil)

// NewLoader wires the codec registry with the configured input paths.
func NewLoader(reg *sheet.Registry, cfg config.InputConfig, log *slog.Logger) *Loader {
	return &Loader{
		registry:     reg,
		descriptions: cfg.Descriptions,
		tracker:      cfg.Tracker,
		duplicates:   cfg.Duplicates,
		logger:       log,
	}
}

// Load returns the merged table. Every failure is a *domain.LoadError.
func (l *Loader) Load(ctx context.Context) (*domain.MergedTable, error) {
	descSheet, err := l.read(ctx, l.descriptions)
	if err != nil {
		return nil, err
	}
	descriptions, err := DescriptionsFromSheet(descSheet)
	if err != nil {
		return nil, &domain.LoadError{Path: l.descriptions, Err: err}
	}

	trackerSheet, err := l.read(ctx, l.tracker)
	if err != nil {
		return nil, err
	}
	tracker, err := TrackerFromSheet(trackerSheet)
	if err != nil {
		return nil, &domain.LoadError{Path: l.tracker, Err: err}
	}

	merged, duplicates := Merge(tracker, descriptions, l.duplicates)
	l.debug("tables merged",
		"descriptions", len(descriptions),
		"tracker_rows", len(tracker.Rows),
		"duplicate_titles", duplicates,
		"policy", l.duplicates)

	return merged, nil
}

func (l *Loader) read(ctx context.Context, path string) (*sheet.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	if l.registry == nil {
		return nil, &domain.LoadError{Path: path, Err: errors.New("codec registry is not configured")}
	}

	codec, err := l.registry.ForPath(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: err}
	}
	defer f.Close()

	s, err := codec.Decode(f)
	if err != nil {
		return nil, &domain.LoadError{Path: path, Err: fmt.Errorf("decode %s: %w", codec.Name(), err)}
	}

	l.debug("table read", "path", path, "codec", codec.Name(), "rows", len(s.Records))
	return s, nil
}

func (l *Loader) debug(msg string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}

// DescriptionsFromSheet extracts video_title/description pairs. Blank descriptions are null.
func DescriptionsFromSheet(s *sheet.Sheet) ([]domain.DescriptionRecord, error) {
	titleIdx := s.Index(domain.ColumnVideoTitle)
	if titleIdx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, domain.ColumnVideoTitle)
	}
	descIdx := s.Index(domain.ColumnDescription)
	if descIdx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, domain.ColumnDescription)
	}

	records := make([]domain.DescriptionRecord, 0, len(s.Records))
	for _, rec := range s.Records {
		records = append(records, domain.DescriptionRecord{
			VideoTitle:  rec[titleIdx],
			Description: domain.NewNullString(rec[descIdx]),
		})
	}
	return records, nil
}

// TrackerFromSheet keeps every column and row of the tracker as-is.
func TrackerFromSheet(s *sheet.Sheet) (domain.TrackerTable, error) {
	titleIdx := s.Index(domain.ColumnVideoTitle)
	if titleIdx < 0 {
		return domain.TrackerTable{}, fmt.Errorf("%w: %s", domain.ErrMissingColumn, domain.ColumnVideoTitle)
	}

	table := domain.TrackerTable{
		Columns: append([]string(nil), s.Header...),
		Rows:    make([]domain.TrackerRecord, 0, len(s.Records)),
	}
	for _, rec := range s.Records {
		table.Rows = append(table.Rows, domain.TrackerRecord{
			VideoTitle: rec[titleIdx],
			Values:     rec,
		})
	}
	return table, nil
}

// Merge left-joins descriptions onto the tracker. The result has exactly one row per tracker
// row, in tracker order. When a title repeats in descriptions the policy picks the first or
// last occurrence; the number of repeated titles is returned.
func Merge(tracker domain.TrackerTable, descriptions []domain.DescriptionRecord, policy string) (*domain.MergedTable, int) {
	index := make(map[string]domain.NullString, len(descriptions))
	duplicates := 0
	for _, d := range descriptions {
		if _, seen := index[d.VideoTitle]; seen {
			duplicates++
			if policy != config.DuplicatesLast {
				continue
			}
		}
		index[d.VideoTitle] = d.Description
	}

	columns := append([]string(nil), tracker.Columns...)
	descColumn := domain.ColumnDescription
	for i, name := range columns {
		if name == domain.ColumnDescription {
			columns[i] = domain.ColumnDescription + leftSuffix
			descColumn = domain.ColumnDescription + rightSuffix
		}
	}

	merged := &domain.MergedTable{
		Columns:           columns,
		DescriptionColumn: descColumn,
		Rows:              make([]domain.MergedRecord, len(tracker.Rows)),
	}
	for i, row := range tracker.Rows {
		merged.Rows[i] = domain.MergedRecord{
			Tracker:     row,
			Description: index[row.VideoTitle],
		}
	}

	return merged, duplicates
}
