package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"WikiTracker/internal/classifier"
	"WikiTracker/internal/config"
	"WikiTracker/internal/domain"
	"WikiTracker/internal/infrastructure/ollama"
	"WikiTracker/internal/infrastructure/tabular"
	"WikiTracker/internal/logging"
	"WikiTracker/internal/ports"
)

type countingProgress struct {
	total    int
	advanced int
	done     bool
}

func (c *countingProgress) Advance() { c.advanced++ }
func (c *countingProgress) Done()    { c.done = true }

type scriptedClassifier struct {
	labels map[string]domain.Label
	fail   map[string]bool
	seen   []string
}

func (s *scriptedClassifier) Classify(_ context.Context, r domain.MergedRecord) (domain.Label, error) {
	s.seen = append(s.seen, r.Tracker.VideoTitle)
	if s.fail[r.Tracker.VideoTitle] {
		return "", &domain.InferenceError{StatusCode: http.StatusInternalServerError, Body: "boom"}
	}
	return s.labels[r.Tracker.VideoTitle], nil
}

type staticLoader struct {
	table *domain.MergedTable
	err   error
}

func (l staticLoader) Load(context.Context) (*domain.MergedTable, error) {
	return l.table, l.err
}

type captureWriter struct {
	table *domain.MergedTable
	calls int
}

func (w *captureWriter) Write(_ context.Context, t *domain.MergedTable) (string, error) {
	w.calls++
	w.table = t
	return "memory", nil
}

type recordingSinks struct {
	saved     int
	flushed   int
	archived  string
	published domain.RunSummary
	observed  []domain.Label
}

func (r *recordingSinks) SaveRun(context.Context, domain.RunSummary, *domain.MergedTable) error {
	r.saved++
	return errors.New("database down")
}

func (r *recordingSinks) CountLabels(context.Context, string) (map[domain.Label]int, error) {
	return nil, errors.New("database down")
}

func (r *recordingSinks) ObserveRow(label domain.Label, _ time.Duration) {
	r.observed = append(r.observed, label)
}

func (r *recordingSinks) Flush() error {
	r.flushed++
	return nil
}

func (r *recordingSinks) Archive(_ context.Context, runID, path string) (string, error) {
	r.archived = runID + ":" + path
	return "s3://bucket/" + runID, nil
}

func (r *recordingSinks) PublishSummary(_ context.Context, s domain.RunSummary) error {
	r.published = s
	return nil
}

// memoryRepository keeps saved labels per run and can be told to lose some of them.
type memoryRepository struct {
	runs map[string]map[domain.Label]int
	drop domain.Label
}

func (m *memoryRepository) SaveRun(_ context.Context, s domain.RunSummary, t *domain.MergedTable) error {
	if m.runs == nil {
		m.runs = map[string]map[domain.Label]int{}
	}
	counts := map[domain.Label]int{}
	for _, row := range t.Rows {
		if row.Label == m.drop {
			continue
		}
		counts[row.Label]++
	}
	m.runs[s.RunID] = counts
	return nil
}

func (m *memoryRepository) CountLabels(_ context.Context, runID string) (map[domain.Label]int, error) {
	return m.runs[runID], nil
}

func table(titles ...string) *domain.MergedTable {
	t := &domain.MergedTable{Columns: []string{"video_title"}, DescriptionColumn: "description"}
	for _, title := range titles {
		t.Rows = append(t.Rows, domain.MergedRecord{
			Tracker: domain.TrackerRecord{VideoTitle: title, Values: []string{title}},
		})
	}
	return t
}

func progressFactory(p *countingProgress) func(int) ports.Progress {
	return func(total int) ports.Progress {
		p.total = total
		return p
	}
}

func TestRunIsolatesRowFailures(t *testing.T) {
	t.Parallel()

	cls := &scriptedClassifier{
		labels: map[string]domain.Label{"A": domain.LabelYes, "B": domain.LabelNo, "C": domain.LabelYes, "D": "it depends"},
		fail:   map[string]bool{"B": true},
	}
	writer := &captureWriter{}
	progress := &countingProgress{}
	sinks := &recordingSinks{}

	p := NewPipeline(PipelineDeps{
		Loader:      staticLoader{table: table("A", "B", "C", "D")},
		Classifier:  cls,
		Writer:      writer,
		NewProgress: progressFactory(progress),
		Repository:  sinks,
		Metrics:     sinks,
		Archiver:    sinks,
		Notifier:    sinks,
		Model:       "llama3.2",
	})

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []domain.Label{domain.LabelYes, domain.LabelError, domain.LabelYes, "it depends"}
	for i, row := range writer.table.Rows {
		if row.Label != want[i] {
			t.Fatalf("row %d: label %q, want %q", i, row.Label, want[i])
		}
	}
	if strings.Join(cls.seen, ",") != "A,B,C,D" {
		t.Fatalf("rows not processed in order: %v", cls.seen)
	}
	if progress.total != 4 || progress.advanced != 4 || !progress.done {
		t.Fatalf("unexpected progress: %+v", progress)
	}
	if summary.Rows != 4 || summary.Yes != 2 || summary.Errors != 1 || summary.Other != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.RunID == "" || summary.Output != "memory" || summary.Model != "llama3.2" {
		t.Fatalf("summary metadata missing: %+v", summary)
	}
	if sinks.saved != 1 || sinks.flushed != 1 || len(sinks.observed) != 4 {
		t.Fatalf("sinks not fed: %+v", sinks)
	}
	if sinks.archived != summary.RunID+":memory" {
		t.Fatalf("unexpected archive call: %s", sinks.archived)
	}
	if sinks.published.RunID != summary.RunID {
		t.Fatalf("summary not published: %+v", sinks.published)
	}
}

func TestRunLoadFailureIsFatal(t *testing.T) {
	t.Parallel()

	cls := &scriptedClassifier{}
	writer := &captureWriter{}
	loadErr := &domain.LoadError{Path: "descriptions.csv", Err: os.ErrNotExist}

	_, err := NewPipeline(PipelineDeps{
		Loader:     staticLoader{err: loadErr},
		Classifier: cls,
		Writer:     writer,
	}).Run(context.Background())

	var target *domain.LoadError
	if !errors.As(err, &target) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if len(cls.seen) != 0 || writer.calls != 0 {
		t.Fatalf("pipeline continued after load failure: classify=%d write=%d", len(cls.seen), writer.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := &captureWriter{}
	_, err := NewPipeline(PipelineDeps{
		Loader:     staticLoader{table: table("A")},
		Classifier: &scriptedClassifier{},
		Writer:     writer,
	}).Run(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if writer.calls != 0 {
		t.Fatal("output written after cancellation")
	}
}

func TestRunRequiresCoreDeps(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(PipelineDeps{}).Run(context.Background()); err == nil {
		t.Fatal("expected error for empty pipeline")
	}
}

// fakeOllama answers by video title found in the prompt; titles listed in fail get HTTP 500.
func fakeOllama(t *testing.T, answers map[string]string, fail map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for title, answer := range answers {
			if !strings.Contains(req.Prompt, "Video Title: "+title+"\n") {
				continue
			}
			if fail[title] {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"response": answer, "done": true})
			return
		}
		http.Error(w, "unknown title", http.StatusNotFound)
	}))
}

func endToEnd(t *testing.T, server *httptest.Server) (string, domain.RunSummary, error) {
	t.Helper()

	dir := t.TempDir()
	descPath := filepath.Join(dir, "descriptions.csv")
	trackerPath := filepath.Join(dir, "rossmann_wiki_tracker.csv")
	outPath := filepath.Join(dir, "merged_first_try.csv")

	if err := os.WriteFile(descPath, []byte("video_title,description\nA,desc1\n"), 0o644); err != nil {
		t.Fatalf("write descriptions: %v", err)
	}
	if err := os.WriteFile(trackerPath, []byte("video_title\nA\nB\n"), 0o644); err != nil {
		t.Fatalf("write tracker: %v", err)
	}

	reg := tabular.NewRegistry()
	prompt, err := classifier.NewPrompt("", false)
	if err != nil {
		t.Fatalf("NewPrompt: %v", err)
	}
	client := ollama.NewClient(config.OllamaConfig{Endpoint: server.URL + "/api/generate", Model: "llama3.2"}, nil)

	summary, err := NewPipeline(PipelineDeps{
		Loader: tabular.NewLoader(reg, config.InputConfig{
			Descriptions: descPath,
			Tracker:      trackerPath,
			Duplicates:   config.DuplicatesFirst,
		}, nil),
		Classifier: classifier.New(client, prompt, false),
		Writer:     tabular.NewWriter(reg, outPath, nil),
	}).Run(context.Background())

	return outPath, summary, err
}

func TestEndToEndScenario(t *testing.T) {
	t.Parallel()

	server := fakeOllama(t, map[string]string{"A": "  Yes\n", "B": "NO"}, nil)
	defer server.Close()

	out, summary, err := endToEnd(t, server)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "video_title,description,needs_wiki_article\nA,desc1,yes\nB,,no\n"
	if string(raw) != want {
		t.Fatalf("unexpected output:\n%s", raw)
	}
	if summary.Rows != 2 || summary.Yes != 1 || summary.No != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestEndToEndEndpointFailure(t *testing.T) {
	t.Parallel()

	server := fakeOllama(t, map[string]string{"A": "yes", "B": "no"}, map[string]bool{"A": true})
	defer server.Close()

	out, summary, err := endToEnd(t, server)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "video_title,description,needs_wiki_article\nA,desc1,error\nB,,no\n"
	if string(raw) != want {
		t.Fatalf("unexpected output:\n%s", raw)
	}
	if summary.Errors != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestEndToEndMissingInputLeavesOutputAlone(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	dir := t.TempDir()
	outPath := filepath.Join(dir, "merged_first_try.csv")
	reg := tabular.NewRegistry()
	prompt, _ := classifier.NewPrompt("", false)

	_, err := NewPipeline(PipelineDeps{
		Loader: tabular.NewLoader(reg, config.InputConfig{
			Descriptions: filepath.Join(dir, "descriptions.csv"),
			Tracker:      filepath.Join(dir, "rossmann_wiki_tracker.csv"),
			Duplicates:   config.DuplicatesFirst,
		}, nil),
		Classifier: classifier.New(ollama.NewClient(config.OllamaConfig{Endpoint: server.URL, Model: "m"}, nil), prompt, false),
		Writer:     tabular.NewWriter(reg, outPath, nil),
	}).Run(context.Background())

	var loadErr *domain.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("inference called %d times", calls)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Fatalf("output file created: %v", statErr)
	}
}

func labelledRun(t *testing.T, repo *memoryRepository, level string) (domain.RunSummary, string) {
	t.Helper()

	var logs bytes.Buffer
	cls := &scriptedClassifier{
		labels: map[string]domain.Label{"A": domain.LabelYes, "B": domain.LabelNo, "C": "maybe"},
		fail:   map[string]bool{"D": true},
	}
	summary, err := NewPipeline(PipelineDeps{
		Loader:     staticLoader{table: table("A", "B", "C", "D")},
		Classifier: cls,
		Writer:     &captureWriter{},
		Repository: repo,
		Logger:     logging.NewWithWriter(&logs, level),
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary, logs.String()
}

func TestRunVerifiesStoredLabels(t *testing.T) {
	t.Parallel()

	repo := &memoryRepository{}
	summary, logs := labelledRun(t, repo, "debug")

	if got := repo.runs[summary.RunID]; got[domain.LabelYes] != 1 || got[domain.LabelError] != 1 {
		t.Fatalf("run not stored: %v", got)
	}
	if strings.Contains(logs, "stored labels differ from run") {
		t.Fatalf("unexpected mismatch warning:\n%s", logs)
	}
}

func TestRunWarnsWhenStoredLabelsDiffer(t *testing.T) {
	t.Parallel()

	_, logs := labelledRun(t, &memoryRepository{drop: domain.LabelNo}, "debug")

	if !strings.Contains(logs, "stored labels differ from run") {
		t.Fatalf("missing mismatch warning:\n%s", logs)
	}
	if !strings.Contains(logs, "stored_no=0") {
		t.Fatalf("stored counts not logged:\n%s", logs)
	}
}

func TestRunReportsRowFailuresAtErrorLevel(t *testing.T) {
	t.Parallel()

	_, logs := labelledRun(t, &memoryRepository{}, "error")

	if !strings.Contains(logs, "level=ERROR") || !strings.Contains(logs, `msg="classify row failed"`) {
		t.Fatalf("row failure not reported:\n%s", logs)
	}
	if !strings.Contains(logs, "video_title=D") {
		t.Fatalf("failed row not identified:\n%s", logs)
	}
	if strings.Contains(logs, "tables loaded") {
		t.Fatalf("info lines leaked at error level:\n%s", logs)
	}
}
