package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/casechat/casechat/internal/chunker"
	"github.com/casechat/casechat/internal/db"
	"github.com/casechat/casechat/internal/ledger"
	"github.com/casechat/casechat/internal/loader"
	"github.com/casechat/casechat/internal/vectordb"
)

// textLoader treats .txt files as plain text; files whose content starts
// with "CORRUPT" fail to parse.
type textLoader struct{}

func (textLoader) Extensions() []string { return []string{".txt"} }

func (textLoader) Parse(_ context.Context, raw []byte, meta loader.Metadata) ([]loader.Document, error) {
	if strings.HasPrefix(string(raw), "CORRUPT") {
		return nil, errors.New("corrupt file")
	}
	md := meta.Clone()
	md["txt_numpages"] = 1
	return []loader.Document{{Content: string(raw), Metadata: md}}, nil
}

// recordingEmbedder returns fixed-size vectors and records batch sizes.
type recordingEmbedder struct {
	mu      sync.Mutex
	batches []int
	err     error
}

func (e *recordingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, len(texts))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0.5}
	}
	return out, nil
}

func (e *recordingEmbedder) Dimensions() int { return 3 }
func (e *recordingEmbedder) Name() string    { return "recording" }

func (e *recordingEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.batches)
}

type fixture struct {
	root     string
	embedder *recordingEmbedder
	store    *vectordb.ChromemStore
	ledger   *ledger.Store
	registry *loader.Registry
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		os.MkdirAll(filepath.Dir(path), 0755)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	emb := &recordingEmbedder{}
	store, err := vectordb.NewChromemStore("", "test", emb)
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	reg := loader.DefaultRegistry()
	reg.Register(textLoader{})

	return &fixture{
		root:     root,
		embedder: emb,
		store:    store,
		ledger:   ledger.NewStore(database),
		registry: reg,
	}
}

func (f *fixture) pipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	splitter, err := chunker.New()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Namespace == "" {
		opts.Namespace = "pdf-test"
	}
	return NewPipeline(f.registry, splitter, f.embedder, f.store, f.ledger, opts)
}

func TestPipelineRun(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.txt":     strings.Repeat("x", 2500),
		"sub/b.txt": "small document",
	})
	ctx := context.Background()

	var stages []Stage
	var mu sync.Mutex
	p := f.pipeline(t, Options{})
	p.SetProgressFunc(func(stage Stage, processed, total int, current string) {
		mu.Lock()
		stages = append(stages, stage)
		mu.Unlock()
	})

	res, err := p.Run(ctx, f.root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Files != 2 || res.Documents != 2 || res.Chunks != 4 || res.Records != 4 {
		t.Errorf("unexpected result: %+v", res)
	}

	n, _ := f.store.Count(ctx, "pdf-test")
	if n != 4 {
		t.Errorf("store count: got %d, want 4", n)
	}

	results, err := f.store.Query(ctx, "pdf-test", []float32{14, 1, 0.5}, 4)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	sources := map[string]bool{}
	for _, r := range results {
		sources[r.Record.Source()] = true
		if r.Record.Metadata["txt_numpages"] != 1 {
			t.Errorf("loader metadata not carried into record: %v", r.Record.Metadata)
		}
		if _, ok := r.Record.Metadata["chunk_index"]; !ok {
			t.Errorf("chunk_index missing: %v", r.Record.Metadata)
		}
	}
	if !sources[filepath.Join(f.root, "a.txt")] || !sources[filepath.Join(f.root, "sub", "b.txt")] {
		t.Errorf("unexpected sources: %v", sources)
	}

	if len(stages) == 0 || stages[0] != StageLoad || stages[len(stages)-1] != StageEmbed {
		t.Errorf("unexpected progress stages: %v", stages)
	}

	run, err := f.ledger.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != ledger.StatusSucceeded || run.Files != 2 || run.Chunks != 4 {
		t.Errorf("unexpected ledger run: %+v", run)
	}
	recorded, _ := f.ledger.RunFiles(ctx, res.RunID)
	if len(recorded) != 2 || recorded[0].RelPath != "a.txt" || recorded[0].Chunks != 3 {
		t.Errorf("unexpected recorded files: %+v", recorded)
	}
	if lock, _ := f.ledger.CurrentLock(ctx, "pdf-test"); lock != nil {
		t.Errorf("lock not released: %+v", lock)
	}
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": strings.Repeat("y", 1800)})
	ctx := context.Background()
	p := f.pipeline(t, Options{})

	for i := 0; i < 2; i++ {
		if _, err := p.Run(ctx, f.root); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if n, _ := f.store.Count(ctx, "pdf-test"); n != 2 {
		t.Errorf("re-ingestion duplicated records: count %d, want 2", n)
	}
}

func TestPipelineBatchesEmbeddings(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.txt": strings.Repeat("x", 2500),
		"b.txt": "tiny",
	})
	p := f.pipeline(t, Options{BatchSize: 3})

	if _, err := p.Run(context.Background(), f.root); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.embedder.batches; len(got) != 2 || got[0] != 3 || got[1] != 1 {
		t.Errorf("unexpected embedding batches: %v", got)
	}
}

func TestPipelineUnsupportedFormatFailsFast(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.txt":     "fine",
		"notes.xyz": "unsupported",
	})

	_, err := f.pipeline(t, Options{}).Run(context.Background(), f.root)
	if !errors.Is(err, ErrIngestionFailed) {
		t.Fatalf("expected ErrIngestionFailed, got %v", err)
	}
	var ufe *loader.UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Errorf("expected UnsupportedFormatError in chain, got %v", err)
	}
	if f.embedder.calls() != 0 {
		t.Error("no embedding calls should happen when a format is unsupported")
	}
}

func TestPipelineLoadFailureAbortsRun(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.txt":   "fine",
		"bad.txt": "CORRUPT data",
	})
	ctx := context.Background()

	_, err := f.pipeline(t, Options{}).Run(ctx, f.root)
	if !errors.Is(err, ErrIngestionFailed) {
		t.Fatalf("expected ErrIngestionFailed, got %v", err)
	}
	var le *loader.LoadError
	if !errors.As(err, &le) {
		t.Errorf("expected LoadError in chain, got %v", err)
	}
	if n, _ := f.store.Count(ctx, "pdf-test"); n != 0 {
		t.Errorf("nothing should be written, got %d records", n)
	}

	runs, _ := f.ledger.ListRuns(ctx, "pdf-test", 1)
	if len(runs) != 1 || runs[0].Status != ledger.StatusFailed {
		t.Errorf("expected failed run in ledger, got %+v", runs)
	}
}

func TestPipelineEmbeddingFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "content"})
	f.embedder.err = errors.New("rate limited")

	_, err := f.pipeline(t, Options{}).Run(context.Background(), f.root)
	if !errors.Is(err, ErrIngestionFailed) || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected wrapped embedding error, got %v", err)
	}
	if lock, _ := f.ledger.CurrentLock(context.Background(), "pdf-test"); lock != nil {
		t.Error("lock must be released after a failed run")
	}
}

func TestPipelineMissingCorpus(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.pipeline(t, Options{}).Run(context.Background(), filepath.Join(f.root, "missing"))
	if !errors.Is(err, ErrIngestionFailed) {
		t.Errorf("expected ErrIngestionFailed, got %v", err)
	}
}

func TestPipelineRespectsLock(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "content"})
	ctx := context.Background()
	if err := f.ledger.AcquireLock(ctx, "pdf-test", "someone-else"); err != nil {
		t.Fatal(err)
	}

	_, err := f.pipeline(t, Options{}).Run(ctx, f.root)
	if !errors.Is(err, ledger.ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	if f.embedder.calls() != 0 {
		t.Error("locked run must not embed")
	}
}

func TestPipelineReplaceClearsNamespace(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "new content"})
	ctx := context.Background()

	stale := vectordb.Record{ID: "stale", Content: "old", Metadata: map[string]any{"source": "gone.pdf"}, Embedding: []float32{1, 1, 1}}
	if err := f.store.Upsert(ctx, "pdf-test", []vectordb.Record{stale}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.pipeline(t, Options{Replace: true}).Run(ctx, f.root); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n, _ := f.store.Count(ctx, "pdf-test"); n != 1 {
		t.Errorf("expected only fresh records, got %d", n)
	}
}

func TestPipelineWithoutLedger(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "content"})
	splitter, _ := chunker.New()
	p := NewPipeline(f.registry, splitter, f.embedder, f.store, nil, Options{Namespace: "ns"})

	res, err := p.Run(context.Background(), f.root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID != "" || res.Records != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRecordIDDeterministic(t *testing.T) {
	a := RecordID("ns", "docs/a.pdf", 0, "text")
	b := RecordID("ns", "docs/a.pdf", 0, "text")
	if a != b {
		t.Error("same inputs must yield the same ID")
	}
	for _, other := range []string{
		RecordID("ns2", "docs/a.pdf", 0, "text"),
		RecordID("ns", "docs/b.pdf", 0, "text"),
		RecordID("ns", "docs/a.pdf", 1, "text"),
		RecordID("ns", "docs/a.pdf", 0, "text2"),
	} {
		if other == a {
			t.Error("different inputs must yield different IDs")
		}
	}
}
