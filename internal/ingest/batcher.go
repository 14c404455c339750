package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/casechat/casechat/internal/loader"
	"github.com/casechat/casechat/internal/walker"
)

// Batcher loads files concurrently with a fixed parallelism. The first
// failure cancels the remaining work.
type Batcher struct {
	root        string
	concurrency int
	registry    *loader.Registry
	onProgress  ProgressFunc
}

// NewBatcher creates a new Batcher with the given concurrency limit. Files
// are opened as root joined with their RelPath, which also becomes the
// document's "source".
func NewBatcher(root string, concurrency int, registry *loader.Registry, onProgress ProgressFunc) *Batcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batcher{
		root:        root,
		concurrency: concurrency,
		registry:    registry,
		onProgress:  onProgress,
	}
}

// LoadFiles returns the documents of every file, grouped by file in input
// order.
func (b *Batcher) LoadFiles(ctx context.Context, files []walker.FileInfo) ([][]loader.Document, error) {
	total := len(files)
	out := make([][]loader.Document, total)
	if total == 0 {
		return out, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, b.concurrency)
	var (
		wg        sync.WaitGroup
		once      sync.Once
		firstErr  error
		processed int64
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, file := range files {
		select {
		case <-ctx.Done():
			fail(ctx.Err())
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int, f walker.FileInfo) {
			defer wg.Done()
			defer func() { <-sem }()

			docs, err := b.registry.Load(ctx, filepath.Join(b.root, filepath.FromSlash(f.RelPath)))
			if err != nil {
				fail(err)
				return
			}
			out[i] = docs

			count := atomic.AddInt64(&processed, 1)
			if b.onProgress != nil {
				b.onProgress(StageLoad, int(count), total, f.RelPath)
			}
		}(i, file)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, fmt.Errorf("loading corpus: %w", firstErr)
	}
	return out, nil
}
