package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"WikiTracker/internal/app"
	"WikiTracker/internal/classifier"
	"WikiTracker/internal/config"
	"WikiTracker/internal/domain"
	"WikiTracker/internal/logging"
)

// Version is set at build time.
var Version = "dev"

type rootFlags struct {
	configPath   string
	descriptions string
	tracker      string
	output       string
	endpoint     string
	model        string
	logLevel     string
	timeout      string
	retries      int
	strict       bool
	noProgress   bool
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the wikitracker command tree writing to the given streams.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "wikitracker",
		Short:         "Label tracked videos that warrant a wiki article using a local LLM.",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				printError(stderr, err.Error())
				return err
			}
			return run(cmd.Context(), cfg, flags, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file (default $WIKITRACKER_CONFIG)")
	pf.StringVar(&flags.descriptions, "descriptions", "", "description table (csv, tsv or xlsx)")
	pf.StringVar(&flags.tracker, "tracker", "", "tracker table (csv, tsv or xlsx)")
	pf.StringVarP(&flags.output, "output", "o", "", "output table, overwritten")
	pf.StringVar(&flags.endpoint, "endpoint", "", "Ollama generate endpoint")
	pf.StringVarP(&flags.model, "model", "m", "", "model identifier")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&flags.timeout, "timeout", "", "per-request timeout, e.g. 60s (0 disables)")
	pf.IntVar(&flags.retries, "retries", 0, "retries per row after a failed request")
	pf.BoolVar(&flags.strict, "strict", false, "treat answers other than yes/no as errors")
	root.Flags().BoolVar(&flags.noProgress, "no-progress", false, "hide the progress bar")

	root.AddCommand(newPromptCommand(flags, stdout))
	return root
}

func run(parent context.Context, cfg config.Config, flags *rootFlags, stdout, stderr io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewWithWriter(stdout, cfg.Logging.Level)

	opts := app.Options{}
	if !flags.noProgress {
		opts.ProgressWriter = stderr
	}

	application, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		printError(stderr, err.Error())
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	summary, err := application.Run(ctx)
	if err != nil {
		var loadErr *domain.LoadError
		if errors.As(err, &loadErr) {
			printError(stderr, fmt.Sprintf("Cannot load input %s: %v", loadErr.Path, loadErr.Err))
		} else {
			printError(stderr, err.Error())
		}
		return err
	}

	if summary.Errors > 0 {
		printWarning(stdout, fmt.Sprintf("%d of %d rows could not be classified and are labelled %q.", summary.Errors, summary.Rows, domain.LabelError))
	}
	printDetail(stdout, fmt.Sprintf("yes: %d  no: %d  other: %d  error: %d", summary.Yes, summary.No, summary.Other, summary.Errors))
	printSuccess(stdout, fmt.Sprintf("Processing complete. Results saved to '%s'.", summary.Output))
	return nil
}

func newPromptCommand(flags *rootFlags, stdout io.Writer) *cobra.Command {
	var title, description string

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the prompt that would be sent for a title and description.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			p, err := classifier.NewPrompt(cfg.Classifier.PromptTemplate, cfg.Classifier.StripHTML)
			if err != nil {
				return err
			}
			text, err := p.Render(title, description)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(stdout, text)
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "video title")
	cmd.Flags().StringVar(&description, "description", "", "video description")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
