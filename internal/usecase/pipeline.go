package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"WikiTracker/internal/domain"
	"WikiTracker/internal/ports"
)

// PipelineDeps wires all driven adapters into the classification pipeline.
// Loader, Classifier and Writer are required; everything else is optional.
type PipelineDeps struct {
	Loader      ports.TableLoader
	Classifier  ports.Classifier
	Writer      ports.TableWriter
	NewProgress func(total int) ports.Progress
	Repository  ports.ResultRepository
	Metrics     ports.Metrics
	Archiver    ports.Archiver
	Notifier    ports.Notifier
	Model       string
	Logger      *slog.Logger
}

// Pipeline implements the load → classify → write workflow.
type Pipeline struct {
	loader      ports.TableLoader
	classifier  ports.Classifier
	writer      ports.TableWriter
	newProgress func(total int) ports.Progress
	repository  ports.ResultRepository
	metrics     ports.Metrics
	archiver    ports.Archiver
	notifier    ports.Notifier
	model       string
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		loader:      deps.Loader,
		classifier:  deps.Classifier,
		writer:      deps.Writer,
		newProgress: deps.NewProgress,
		repository:  deps.Repository,
		metrics:     deps.Metrics,
		archiver:    deps.Archiver,
		notifier:    deps.Notifier,
		model:       deps.Model,
		logger:      deps.Logger,
	}
}

// Run loads and joins the inputs, labels every row in order and writes the result.
// Load and write failures are fatal; a failing row only gets the "error" label.
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		RunID:     uuid.NewString(),
		Model:     p.model,
		StartedAt: time.Now(),
	}

	if p.loader == nil || p.classifier == nil || p.writer == nil {
		return summary, errors.New("pipeline is missing loader, classifier or writer")
	}

	table, err := p.loader.Load(ctx)
	if err != nil {
		return summary, fmt.Errorf("load tables: %w", err)
	}
	p.info("tables loaded", "run_id", summary.RunID, "rows", table.Len())

	labels, err := p.classifyAll(ctx, table, &summary)
	if err != nil {
		return summary, fmt.Errorf("classify rows: %w", err)
	}
	for i := range table.Rows {
		table.Rows[i].Label = labels[i]
	}

	output, err := p.writer.Write(ctx, table)
	if err != nil {
		return summary, fmt.Errorf("write output: %w", err)
	}
	summary.Output = output
	summary.FinishedAt = time.Now()

	p.info("run finished",
		"run_id", summary.RunID,
		"rows", summary.Rows,
		"yes", summary.Yes,
		"no", summary.No,
		"other", summary.Other,
		"errors", summary.Errors,
		"output", summary.Output,
		"took", summary.Duration().Round(time.Millisecond))

	p.afterWrite(ctx, summary, table)
	return summary, nil
}

// classifyAll folds the rows into a label sequence aligned with table.Rows.
func (p *Pipeline) classifyAll(ctx context.Context, table *domain.MergedTable, summary *domain.RunSummary) ([]domain.Label, error) {
	progress := p.progress(table.Len())
	defer progress.Done()

	labels := make([]domain.Label, 0, table.Len())
	for i, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		started := time.Now()
		label := p.classifyRow(ctx, i, row)
		if p.metrics != nil {
			p.metrics.ObserveRow(label, time.Since(started))
		}

		labels = append(labels, label)
		summary.Count(label)
		progress.Advance()
	}
	return labels, nil
}

func (p *Pipeline) classifyRow(ctx context.Context, index int, row domain.MergedRecord) domain.Label {
	label, err := p.classifier.Classify(ctx, row)
	if err != nil {
		p.logError("classify row failed",
			"row", index,
			"video_title", row.Tracker.VideoTitle,
			"error", err)
		return domain.LabelError
	}
	return label
}

// afterWrite feeds optional sinks. Their failures never fail the run.
func (p *Pipeline) afterWrite(ctx context.Context, summary domain.RunSummary, table *domain.MergedTable) {
	if p.repository != nil {
		if err := p.repository.SaveRun(ctx, summary, table); err != nil {
			p.warn("save run failed", "run_id", summary.RunID, "error", err)
		} else {
			p.verifyStored(ctx, summary)
		}
	}

	if p.metrics != nil {
		if err := p.metrics.Flush(); err != nil {
			p.warn("flush metrics failed", "run_id", summary.RunID, "error", err)
		}
	}

	if p.archiver != nil {
		location, err := p.archiver.Archive(ctx, summary.RunID, summary.Output)
		if err != nil {
			p.warn("archive output failed", "run_id", summary.RunID, "error", err)
		} else {
			p.info("output archived", "run_id", summary.RunID, "location", location)
		}
	}

	if p.notifier != nil {
		if err := p.notifier.PublishSummary(ctx, summary); err != nil {
			p.warn("publish summary failed", "run_id", summary.RunID, "error", err)
		}
	}
}

// verifyStored reads the saved label counts back and warns when they disagree with the run.
func (p *Pipeline) verifyStored(ctx context.Context, summary domain.RunSummary) {
	counts, err := p.repository.CountLabels(ctx, summary.RunID)
	if err != nil {
		p.warn("count stored labels failed", "run_id", summary.RunID, "error", err)
		return
	}

	stored := domain.TallyLabels(counts)
	if stored.Rows != summary.Rows || stored.Yes != summary.Yes || stored.No != summary.No ||
		stored.Other != summary.Other || stored.Errors != summary.Errors {
		p.warn("stored labels differ from run",
			"run_id", summary.RunID,
			"stored_rows", stored.Rows,
			"stored_yes", stored.Yes,
			"stored_no", stored.No,
			"stored_other", stored.Other,
			"stored_errors", stored.Errors,
			"rows", summary.Rows)
	}
}

func (p *Pipeline) progress(total int) ports.Progress {
	if p.newProgress == nil {
		return nopProgress{}
	}
	if pr := p.newProgress(total); pr != nil {
		return pr
	}
	return nopProgress{}
}

func (p *Pipeline) info(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) logError(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

type nopProgress struct{}

func (nopProgress) Advance() {}
func (nopProgress) Done()    {}
