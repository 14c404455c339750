// Package chunker splits document text into overlapping, size-bounded
// chunks that prefer natural boundaries.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/casechat/casechat/internal/loader"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters repeated between
	// consecutive chunks.
	DefaultChunkOverlap = 200
)

// ErrInvalidConfig is returned for a size/overlap pair that cannot make
// progress.
var ErrInvalidConfig = errors.New("invalid chunker config")

// DefaultSeparators are tried in order: paragraph, line, word. When none
// fits, the chunk is cut at the size limit.
var DefaultSeparators = []string{"\n\n", "\n", " "}

// Splitter is a recursive character splitter. Lengths are counted in
// Unicode code points so multi-byte text is never cut mid-character.
type Splitter struct {
	size       int
	overlap    int
	separators [][]rune
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk length.
func WithChunkSize(n int) Option {
	return func(s *Splitter) { s.size = n }
}

// WithOverlap sets the overlap between consecutive chunks.
func WithOverlap(n int) Option {
	return func(s *Splitter) { s.overlap = n }
}

// WithSeparators replaces the separator priority list.
func WithSeparators(seps ...string) Option {
	return func(s *Splitter) {
		s.separators = s.separators[:0]
		for _, sep := range seps {
			if sep != "" {
				s.separators = append(s.separators, []rune(sep))
			}
		}
	}
}

// New creates a Splitter. It fails with ErrInvalidConfig unless
// 0 <= overlap < size.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, sep := range DefaultSeparators {
		s.separators = append(s.separators, []rune(sep))
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfig, s.size)
	}
	if s.overlap < 0 || s.overlap >= s.size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, s.overlap, s.size)
	}
	return s, nil
}

// ChunkSize returns the configured maximum chunk length.
func (s *Splitter) ChunkSize() int { return s.size }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// SplitText cuts text into chunks. Every chunk after the first begins with
// the last Overlap() characters of the chunk before it, so dropping that
// prefix and concatenating reproduces text exactly. Whitespace-only text
// yields no chunks.
func (s *Splitter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)

	var chunks []string
	start := 0
	for {
		if len(runes)-start <= s.size {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		end := s.cut(runes, start)
		chunks = append(chunks, string(runes[start:end]))
		start = end - s.overlap
	}
}

// cut picks the end of the chunk starting at start. The end lies in
// (start+overlap, start+size] so the next start always advances.
func (s *Splitter) cut(runes []rune, start int) int {
	lo, hi := start+s.overlap+1, start+s.size
	for _, sep := range s.separators {
		for end := hi; end >= lo; end-- {
			if end-len(sep) >= start && hasSuffixAt(runes, end, sep) {
				return end
			}
		}
	}
	return hi
}

func hasSuffixAt(runes []rune, end int, sep []rune) bool {
	off := end - len(sep)
	for i, r := range sep {
		if runes[off+i] != r {
			return false
		}
	}
	return true
}

// SplitDocuments chunks each document separately. Chunks inherit their
// parent's metadata plus "chunk_index", their position within the parent.
func (s *Splitter) SplitDocuments(docs []loader.Document) []loader.Document {
	var out []loader.Document
	for _, doc := range docs {
		for i, text := range s.SplitText(doc.Content) {
			md := doc.Metadata.Clone()
			md["chunk_index"] = i
			out = append(out, loader.Document{Content: text, Metadata: md})
		}
	}
	return out
}
