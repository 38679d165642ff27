package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"WikiTracker/internal/domain"
)

func TestObserveRowBucketsLabels(t *testing.T) {
	t.Parallel()

	r := NewRecorder("")
	r.ObserveRow(domain.LabelYes, time.Second)
	r.ObserveRow(domain.LabelYes, time.Second)
	r.ObserveRow(domain.LabelError, time.Millisecond)
	r.ObserveRow("it depends", time.Millisecond)

	if got := testutil.ToFloat64(r.rows.WithLabelValues("yes")); got != 2 {
		t.Fatalf("yes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.rows.WithLabelValues("error")); got != 1 {
		t.Fatalf("error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.rows.WithLabelValues("other")); got != 1 {
		t.Fatalf("other = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.inference); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}
}

func TestFlushWritesTextfile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wikitracker.prom")
	r := NewRecorder(path)
	r.ObserveRow(domain.LabelNo, 2*time.Second)

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(raw), `wikitracker_rows_total{label="no"} 1`) {
		t.Fatalf("counter missing from textfile:\n%s", raw)
	}
}

func TestFlushWithoutTextfile(t *testing.T) {
	t.Parallel()

	if err := NewRecorder("").Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
