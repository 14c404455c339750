package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// QdrantStore implements VectorStore over the Qdrant REST API. All
// namespaces share one collection; each point carries its namespace in the
// payload and queries filter on it.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu      sync.Mutex
	ensured bool
}

// QdrantConfig configures a QdrantStore.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewQdrantStore creates a Qdrant-backed store. The collection is created
// with cosine distance on first upsert if missing.
func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type qdrantScored struct {
	ID      any            `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func namespaceFilter(namespace string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "namespace", "match": map[string]any{"value": namespace}},
		},
	}
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	status, err := s.do(ctx, http.MethodGet, "/collections/"+s.collection, nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusNotFound {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if _, err := s.do(ctx, http.MethodPut, "/collections/"+s.collection, body, nil); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
	}
	s.ensured = true
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(records[0].Embedding)); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(records))
	for i, r := range records {
		points[i] = qdrantPoint{
			ID:     r.ID,
			Vector: r.Embedding,
			Payload: map[string]any{
				"namespace": namespace,
				"text":      r.Content,
				"metadata":  r.Metadata,
			},
		}
	}
	_, err := s.do(ctx, http.MethodPut, "/collections/"+s.collection+"/points?wait=true", map[string]any{"points": points}, nil)
	return err
}

func (s *QdrantStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"filter":       namespaceFilter(namespace),
	}
	var resp struct {
		Result []qdrantScored `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/search", req, &resp)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		rec := Record{ID: fmt.Sprint(r.ID)}
		if v, ok := r.Payload["text"].(string); ok {
			rec.Content = v
		}
		if v, ok := r.Payload["metadata"].(map[string]any); ok {
			rec.Metadata = normalizeNumbers(v)
		}
		results = append(results, SearchResult{Record: rec, Similarity: r.Score})
	}
	return results, nil
}

func (s *QdrantStore) Count(ctx context.Context, namespace string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	req := map[string]any{"filter": namespaceFilter(namespace), "exact": true}
	status, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/count", req, &resp)
	if status == http.StatusNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	req := map[string]any{"filter": namespaceFilter(namespace)}
	status, err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/delete?wait=true", req, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

// Persist is a no-op; Qdrant commits each upsert with wait=true.
func (s *QdrantStore) Persist(context.Context) error {
	return nil
}

// do sends a JSON request and decodes the response into out. The HTTP
// status is returned even when err is non-nil.
func (s *QdrantStore) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal qdrant request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, rdr)
	if err != nil {
		return 0, fmt.Errorf("create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// normalizeNumbers turns whole JSON numbers back into int.
func normalizeNumbers(m map[string]any) map[string]any {
	for k, v := range m {
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			m[k] = int(f)
		}
	}
	return m
}
