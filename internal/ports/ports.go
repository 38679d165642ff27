package ports

import (
	"context"
	"time"

	"WikiTracker/internal/domain"
)

// TableLoader reads both input datasets and returns their left join.
type TableLoader interface {
	Load(ctx context.Context) (*domain.MergedTable, error)
}

// Classifier decides the needs_wiki_article label for one merged row.
type Classifier interface {
	Classify(ctx context.Context, record domain.MergedRecord) (domain.Label, error)
}

// Generator sends a prompt to an LLM and returns the raw completion text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TableWriter serializes the labelled table and returns where it was written.
type TableWriter interface {
	Write(ctx context.Context, table *domain.MergedTable) (string, error)
}

// Progress observes row processing; Advance is called exactly once per row.
type Progress interface {
	Advance()
	Done()
}

// ResultRepository keeps an audit trail of classified rows.
type ResultRepository interface {
	SaveRun(ctx context.Context, summary domain.RunSummary, table *domain.MergedTable) error
	CountLabels(ctx context.Context, runID string) (map[domain.Label]int, error)
}

// Metrics records per-row outcomes and flushes them once the run ends.
type Metrics interface {
	ObserveRow(label domain.Label, took time.Duration)
	Flush() error
}

// Archiver copies the written output to long-term storage and returns its location.
type Archiver interface {
	Archive(ctx context.Context, runID, path string) (string, error)
}

// Notifier publishes a short run summary to a chat or similar channel.
type Notifier interface {
	PublishSummary(ctx context.Context, summary domain.RunSummary) error
}
