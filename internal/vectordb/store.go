package vectordb

import "context"

// VectorStore stores embedded records partitioned by namespace and answers
// nearest-neighbour queries within a single namespace.
type VectorStore interface {
	// Upsert inserts records, replacing any existing record with the same ID.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query returns up to k records nearest to vector, most similar first.
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]SearchResult, error)

	// Count returns the number of records in the namespace.
	Count(ctx context.Context, namespace string) (int, error)

	// DeleteNamespace removes every record in the namespace.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Persist flushes the store to durable storage, if it has any.
	Persist(ctx context.Context) error
}
