package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"WikiTracker/internal/config"
)

// resolveConfig loads file and env configuration, then applies flags the user actually set.
func resolveConfig(cmd *cobra.Command, f *rootFlags) (config.Config, error) {
	cfg := config.Load(f.configPath)
	changed := cmd.Flags().Changed

	if changed("descriptions") {
		cfg.Input.Descriptions = f.descriptions
	}
	if changed("tracker") {
		cfg.Input.Tracker = f.tracker
	}
	if changed("output") {
		cfg.Output.Path = f.output
	}
	if changed("endpoint") {
		cfg.Ollama.Endpoint = f.endpoint
	}
	if changed("model") {
		cfg.Ollama.Model = f.model
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(f.timeout))
		if err != nil {
			return cfg, fmt.Errorf("parse --timeout: %w", err)
		}
		cfg.Ollama.Timeout = d
	}
	if changed("retries") {
		cfg.Ollama.MaxRetries = f.retries
	}
	if changed("strict") {
		cfg.Classifier.StrictLabels = f.strict
	}

	return cfg, cfg.Validate()
}
