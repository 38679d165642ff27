package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"WikiTracker/internal/domain"
	"WikiTracker/internal/ports"
)

// Recorder collects per-run Prometheus metrics in its own registry.
type Recorder struct {
	registry  *prometheus.Registry
	rows      *prometheus.CounterVec
	inference prometheus.Histogram
	textfile  string
}

var _ ports.Metrics = (*Recorder)(nil)

// NewRecorder registers the run metrics. Flush writes them to textfile when it is non-empty.
func NewRecorder(textfile string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikitracker_rows_total",
				Help: "Rows classified, by outcome",
			},
			[]string{"label"},
		),
		inference: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wikitracker_inference_duration_seconds",
				Help:    "Time spent classifying one row",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		textfile: textfile,
	}

	r.registry.MustRegister(r.rows, r.inference)
	return r
}

// ObserveRow counts the outcome and records how long classification took.
func (r *Recorder) ObserveRow(label domain.Label, took time.Duration) {
	r.rows.WithLabelValues(bucket(label)).Inc()
	r.inference.Observe(took.Seconds())
}

// Flush writes the registry in text exposition format for the node-exporter textfile collector.
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return fmt.Errorf("write textfile %s: %w", r.textfile, err)
	}
	return nil
}

// bucket keeps label cardinality bounded: free-text answers collapse into "other".
func bucket(label domain.Label) string {
	switch label {
	case domain.LabelYes, domain.LabelNo, domain.LabelError:
		return string(label)
	default:
		return "other"
	}
}
