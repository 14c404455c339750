// Package ingest builds the vector index from a corpus directory.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/casechat/casechat/internal/chunker"
	"github.com/casechat/casechat/internal/embeddings"
	"github.com/casechat/casechat/internal/ledger"
	"github.com/casechat/casechat/internal/loader"
	"github.com/casechat/casechat/internal/vectordb"
	"github.com/casechat/casechat/internal/walker"
)

// Pipeline orchestrates a batch ingestion run:
// walk -> check formats -> load -> chunk -> embed -> upsert -> persist.
// Runs are all-or-nothing: the first failure aborts the run. Records
// already upserted are not rolled back.
type Pipeline struct {
	registry   *loader.Registry
	splitter   *chunker.Splitter
	embedder   embeddings.Embedder
	store      vectordb.VectorStore
	ledger     *ledger.Store
	opts       Options
	onProgress ProgressFunc
}

// NewPipeline creates a new Pipeline. ledger may be nil, in which case runs
// are neither recorded nor serialized.
func NewPipeline(
	registry *loader.Registry,
	splitter *chunker.Splitter,
	embedder embeddings.Embedder,
	store vectordb.VectorStore,
	ledgerStore *ledger.Store,
	opts Options,
) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Pipeline{
		registry: registry,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		ledger:   ledgerStore,
		opts:     opts,
	}
}

// SetProgressFunc sets the progress callback.
func (p *Pipeline) SetProgressFunc(fn ProgressFunc) {
	p.onProgress = fn
}

// Run ingests every supported file under corpusDir into the configured
// namespace. Any error is wrapped in ErrIngestionFailed.
func (p *Pipeline) Run(ctx context.Context, corpusDir string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	if p.ledger != nil {
		run, err := p.ledger.StartRun(ctx, p.opts.Namespace, corpusDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIngestionFailed, err)
		}
		result.RunID = run.ID
		if err := p.ledger.AcquireLock(ctx, p.opts.Namespace, run.ID); err != nil {
			p.finish(run.ID, result, err)
			return nil, fmt.Errorf("%w: %w", ErrIngestionFailed, err)
		}
		defer func() {
			if err := p.ledger.ReleaseLock(context.Background(), p.opts.Namespace, run.ID); err != nil {
				log.Printf("ingest: %v", err)
			}
		}()
	}

	files, err := p.run(ctx, corpusDir, result)
	if p.ledger != nil {
		if err == nil {
			err = p.ledger.RecordFiles(ctx, result.RunID, files)
		}
		p.finish(result.RunID, result, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngestionFailed, err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (p *Pipeline) finish(runID string, result *Result, runErr error) {
	if err := p.ledger.FinishRun(context.Background(), runID, result.Files, result.Chunks, runErr); err != nil {
		log.Printf("ingest: %v", err)
	}
}

func (p *Pipeline) run(ctx context.Context, corpusDir string, result *Result) ([]ledger.File, error) {
	files, err := walker.Walk(walker.WalkerConfig{
		RootDir:     corpusDir,
		Include:     p.opts.Include,
		Exclude:     p.opts.Exclude,
		MaxFileSize: p.opts.MaxFileSize,
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating corpus: %w", err)
	}

	// Reject the run before any parsing if a file has no loader.
	for _, f := range files {
		if _, err := p.registry.For(f.Path); err != nil {
			return nil, err
		}
	}
	result.Files = len(files)

	perFile, err := NewBatcher(corpusDir, p.opts.Concurrency, p.registry, p.onProgress).LoadFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	var (
		docs     []loader.Document
		chunks   []loader.Document
		recorded = make([]ledger.File, len(files))
	)
	for i, fileDocs := range perFile {
		docs = append(docs, fileDocs...)
		fileChunks := p.splitter.SplitDocuments(fileDocs)
		chunks = append(chunks, fileChunks...)
		recorded[i] = ledger.File{
			RelPath:     files[i].RelPath,
			ContentHash: files[i].ContentHash,
			Size:        files[i].Size,
			Chunks:      len(fileChunks),
		}
	}
	result.Documents = len(docs)
	result.Chunks = len(chunks)

	if p.opts.Replace {
		if err := p.store.DeleteNamespace(ctx, p.opts.Namespace); err != nil {
			return nil, fmt.Errorf("clearing namespace %s: %w", p.opts.Namespace, err)
		}
	}

	for i := 0; i < len(chunks); i += p.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(i+p.opts.BatchSize, len(chunks))
		n, err := p.embedAndStore(ctx, chunks[i:end])
		if err != nil {
			return nil, err
		}
		result.Records += n
		if p.onProgress != nil {
			p.onProgress(StageEmbed, end, len(chunks), fmt.Sprintf("chunks %d-%d", i+1, end))
		}
	}

	if err := p.store.Persist(ctx); err != nil {
		return nil, fmt.Errorf("persisting vector store: %w", err)
	}

	return recorded, nil
}

func (p *Pipeline) embedAndStore(ctx context.Context, batch []loader.Document) (int, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("embedding service returned %d vectors for %d chunks", len(vectors), len(batch))
	}

	records := make([]vectordb.Record, len(batch))
	for i, c := range batch {
		source, _ := c.Metadata["source"].(string)
		index, _ := c.Metadata["chunk_index"].(int)
		records[i] = vectordb.Record{
			ID:        RecordID(p.opts.Namespace, source, index, c.Content),
			Content:   c.Content,
			Metadata:  map[string]any(c.Metadata),
			Embedding: vectors[i],
		}
	}

	if err := p.store.Upsert(ctx, p.opts.Namespace, records); err != nil {
		return 0, fmt.Errorf("upserting records: %w", err)
	}
	return len(records), nil
}
