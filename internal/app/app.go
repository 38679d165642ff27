package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/lib/pq"

	"WikiTracker/internal/classifier"
	"WikiTracker/internal/config"
	"WikiTracker/internal/domain"
	"WikiTracker/internal/infrastructure/archive"
	"WikiTracker/internal/infrastructure/metrics"
	"WikiTracker/internal/infrastructure/ollama"
	"WikiTracker/internal/infrastructure/progress"
	"WikiTracker/internal/infrastructure/storage"
	"WikiTracker/internal/infrastructure/tabular"
	"WikiTracker/internal/infrastructure/telegram"
	"WikiTracker/internal/logging"
	"WikiTracker/internal/ports"
	"WikiTracker/internal/usecase"
)

// ProgressLabel is shown next to the progress bar.
const ProgressLabel = "Processing rows..."

// Options carries process-level wiring that does not belong in Config.
type Options struct {
	// ProgressWriter receives the progress bar; nil disables it.
	ProgressWriter io.Writer
}

// Application wires configs to the pipeline and owns external connections.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	closers  []func() error
}

// New validates the configuration and builds the pipeline with every enabled adapter.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	prompt, err := classifier.NewPrompt(cfg.Classifier.PromptTemplate, cfg.Classifier.StripHTML)
	if err != nil {
		return nil, err
	}

	registry := tabular.NewRegistry()
	client := ollama.NewClient(cfg.Ollama, baseLogger.With("component", "ollama"))

	deps := usecase.PipelineDeps{
		Loader:     tabular.NewLoader(registry, cfg.Input, baseLogger.With("component", "loader")),
		Classifier: classifier.New(client, prompt, cfg.Classifier.StrictLabels),
		Writer:     tabular.NewWriter(registry, cfg.Output.Path, baseLogger.With("component", "writer")),
		Metrics:    metrics.NewRecorder(cfg.Metrics.Textfile),
		Model:      client.Model(),
		Logger:     baseLogger.With("component", "pipeline"),
	}

	deps.NewProgress = func(total int) ports.Progress {
		if opts.ProgressWriter == nil {
			return progress.Nop{}
		}
		return progress.NewBar(opts.ProgressWriter, ProgressLabel, total)
	}

	application := &Application{cfg: cfg}

	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		application.closers = append(application.closers, db.Close)

		repo := storage.NewPostgresRepository(db, cfg.Database.Table)
		if cfg.Database.EnsureSchema {
			if err := repo.EnsureSchema(ctx); err != nil {
				_ = application.Close()
				return nil, err
			}
		}
		deps.Repository = repo
	}

	if cfg.Archive.Bucket != "" {
		s3Client, err := archive.NewS3Client(ctx, cfg.Archive)
		if err != nil {
			_ = application.Close()
			return nil, err
		}
		deps.Archiver = archive.NewS3Archiver(s3Client, cfg.Archive.Bucket, cfg.Archive.Prefix)
	}

	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		deps.Notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	application.pipeline = usecase.NewPipeline(deps)
	return application, nil
}

// Run performs a single classification pass.
func (a *Application) Run(ctx context.Context) (domain.RunSummary, error) {
	if a.pipeline == nil {
		return domain.RunSummary{}, errors.New("application is not initialised")
	}
	return a.pipeline.Run(ctx)
}

// Close releases external connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
