package vectordb

// Record is one embedded chunk: the vector, its text, and the metadata
// inherited from the source document.
type Record struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// SearchResult pairs a record with its similarity score.
type SearchResult struct {
	Record     Record
	Similarity float32
}

// Source returns the record's source path, if any.
func (r Record) Source() string {
	s, _ := r.Metadata["source"].(string)
	return s
}
