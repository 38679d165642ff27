package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"WikiTracker/internal/domain"
	"WikiTracker/internal/ports"
)

// WikiClassifier turns one merged row into a needs_wiki_article label.
type WikiClassifier struct {
	generator ports.Generator
	prompt    *Prompt
	strict    bool
}

var _ ports.Classifier = (*WikiClassifier)(nil)

// New wires a generator with a prompt. In strict mode only yes/no labels are accepted.
func New(gen ports.Generator, prompt *Prompt, strict bool) *WikiClassifier {
	return &WikiClassifier{generator: gen, prompt: prompt, strict: strict}
}

// Classify renders the prompt, asks the model and normalises its answer.
func (c *WikiClassifier) Classify(ctx context.Context, record domain.MergedRecord) (domain.Label, error) {
	if c.generator == nil || c.prompt == nil {
		return "", &domain.InferenceError{Err: errors.New("classifier is not configured")}
	}

	prompt, err := c.prompt.Render(record.Tracker.VideoTitle, record.Description.String)
	if err != nil {
		return "", &domain.InferenceError{Err: err}
	}

	raw, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	label := Normalize(raw)
	if c.strict && !label.Known() {
		return "", &domain.InferenceError{Err: fmt.Errorf("%w: %q", domain.ErrUnexpectedLabel, label)}
	}
	return label, nil
}

// Normalize trims surrounding whitespace and lowercases. Any text survives; the
// vocabulary is not enforced here.
func Normalize(raw string) domain.Label {
	return domain.Label(strings.ToLower(strings.TrimSpace(raw)))
}
