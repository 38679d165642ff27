package domain

import "time"

// Column names the loader and writer rely on.
const (
	ColumnVideoTitle       = "video_title"
	ColumnDescription      = "description"
	ColumnNeedsWikiArticle = "needs_wiki_article"
)

// DescriptionRecord is one row of the description dataset.
type DescriptionRecord struct {
	VideoTitle  string
	Description NullString
}

// TrackerRecord is one tracked video appearance. Values are aligned with TrackerTable.Columns.
type TrackerRecord struct {
	VideoTitle string
	Values     []string
}

// TrackerTable is the primary dataset being enriched.
type TrackerTable struct {
	Columns []string
	Rows    []TrackerRecord
}

// NullString is a description cell that may be absent.
type NullString struct {
	String string
	Valid  bool
}

// NewNullString treats the empty string as null, like a blank cell in the source file.
func NewNullString(s string) NullString {
	return NullString{String: s, Valid: s != ""}
}

// MergedRecord is a tracker row with its joined description and, after classification, a label.
type MergedRecord struct {
	Tracker     TrackerRecord
	Description NullString
	Label       Label
}

// MergedTable is the left join of tracker and description tables in tracker order.
// Columns are the tracker columns; DescriptionColumn names the joined description column.
type MergedTable struct {
	Columns           []string
	DescriptionColumn string
	Rows              []MergedRecord
}

// Len returns the number of rows.
func (t *MergedTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Label is the stored needs_wiki_article value. Free text is allowed in lenient mode.
type Label string

const (
	LabelYes   Label = "yes"
	LabelNo    Label = "no"
	LabelError Label = "error"
)

// Known reports whether the label is one of yes/no.
func (l Label) Known() bool {
	return l == LabelYes || l == LabelNo
}

// RunSummary describes the outcome of one pipeline execution.
type RunSummary struct {
	RunID      string
	Model      string
	Rows       int
	Yes        int
	No         int
	Other      int
	Errors     int
	Output     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Count tallies a label into the summary.
func (s *RunSummary) Count(label Label) {
	s.Rows++
	switch label {
	case LabelYes:
		s.Yes++
	case LabelNo:
		s.No++
	case LabelError:
		s.Errors++
	default:
		s.Other++
	}
}

// TallyLabels folds stored label frequencies into a summary's counters.
func TallyLabels(counts map[Label]int) RunSummary {
	var s RunSummary
	for label, n := range counts {
		for i := 0; i < n; i++ {
			s.Count(label)
		}
	}
	return s
}

// Duration is the wall-clock time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
