package vectordb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/casechat/casechat/internal/embeddings"
)

const exportFile = "chromem.gob.gz"

// ChromemStore implements VectorStore using chromem-go. Each namespace is
// a separate collection named "<index>-<namespace>".
type ChromemStore struct {
	db        *chromem.DB
	dir       string
	index     string
	embedFunc chromem.EmbeddingFunc
}

// NewChromemStore creates a ChromemStore persisted under dir. An existing
// export in dir is loaded. An empty dir keeps the store in memory only.
func NewChromemStore(dir, index string, embedder embeddings.Embedder) (*ChromemStore, error) {
	s := &ChromemStore{
		db:        chromem.NewDB(),
		dir:       dir,
		index:     index,
		embedFunc: embeddings.ToChromemFunc(embedder),
	}
	if dir == "" {
		return s, nil
	}
	path := filepath.Join(dir, exportFile)
	if _, err := os.Stat(path); err == nil {
		if err := s.db.ImportFromFile(path, ""); err != nil {
			return nil, fmt.Errorf("import from file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing %s: %w", path, err)
	}
	return s, nil
}

func (s *ChromemStore) collectionName(namespace string) string {
	return s.index + "-" + namespace
}

func (s *ChromemStore) collection(namespace string) (*chromem.Collection, error) {
	col, err := s.db.GetOrCreateCollection(s.collectionName(namespace), nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return col, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  flattenMetadata(r.Metadata),
			Embedding: r.Embedding,
		}
	}

	return col.AddDocuments(ctx, docs, 1)
}

func (s *ChromemStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	col := s.db.GetCollection(s.collectionName(namespace), s.embedFunc)
	if col == nil {
		return nil, nil
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	k = min(k, count)

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Record: Record{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: restoreMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

func (s *ChromemStore) Count(_ context.Context, namespace string) (int, error) {
	col := s.db.GetCollection(s.collectionName(namespace), s.embedFunc)
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

func (s *ChromemStore) DeleteNamespace(_ context.Context, namespace string) error {
	return s.db.DeleteCollection(s.collectionName(namespace))
}

func (s *ChromemStore) Persist(_ context.Context) error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}
	return s.db.ExportToFile(filepath.Join(s.dir, exportFile), true, "")
}

// flattenMetadata converts metadata to the flat string map chromem stores.
func flattenMetadata(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// restoreMetadata reverses flattenMetadata; integer-looking values come
// back as int.
func restoreMetadata(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if n, err := strconv.Atoi(v); err == nil {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out
}
