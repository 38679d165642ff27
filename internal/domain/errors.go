package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn marks an input table without a required column.
	ErrMissingColumn = errors.New("missing required column")
	// ErrUnexpectedLabel marks a model answer outside {yes, no} in strict mode.
	ErrUnexpectedLabel = errors.New("unexpected label")
	// ErrMissingResponse marks an inference body without a response field.
	ErrMissingResponse = errors.New("response field missing")
)

// LoadError is fatal: an input table could not be read or lacks required columns.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InferenceError is recoverable per row. StatusCode is zero when no HTTP response was received.
type InferenceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *InferenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("inference error: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("inference error: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
