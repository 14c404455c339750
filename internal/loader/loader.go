// Package loader turns PDF and DOCX files into plain-text documents.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Metadata is the key/value bag attached to a document and inherited by
// every chunk cut from it. It always carries "source".
type Metadata map[string]any

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Document is the extracted text of one source file.
type Document struct {
	Content  string
	Metadata Metadata
}

// Loader parses one file format.
type Loader interface {
	// Extensions lists the lower-case file extensions handled, with dot.
	Extensions() []string
	// Parse extracts documents from raw file bytes. meta is the base
	// metadata for every returned document.
	Parse(ctx context.Context, raw []byte, meta Metadata) ([]Document, error)
}

// Registry maps file extensions to loaders.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]Loader)}
}

// DefaultRegistry returns a registry with the PDF and DOCX loaders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPDFLoader())
	r.Register(NewDOCXLoader())
	return r
}

// Register adds l for each of its extensions, replacing earlier entries.
func (r *Registry) Register(l Loader) {
	for _, ext := range l.Extensions() {
		r.loaders[strings.ToLower(ext)] = l
	}
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// For returns the loader for path's extension.
func (r *Registry) For(path string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := r.loaders[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Path: path, Ext: ext}
	}
	return l, nil
}

// Supports reports whether path has a registered loader.
func (r *Registry) Supports(path string) bool {
	_, err := r.For(path)
	return err == nil
}

// Load reads and parses the file at path. Documents carry
// {"source": path} plus format-specific keys.
func (r *Registry) Load(ctx context.Context, path string) ([]Document, error) {
	l, err := r.For(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return parse(ctx, l, path, raw, Metadata{"source": path})
}

// LoadBlob parses in-memory bytes. name only selects the format. Documents
// carry {"source": "blob", "blobType": <extension>}.
func (r *Registry) LoadBlob(ctx context.Context, name string, data []byte) ([]Document, error) {
	l, err := r.For(name)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(name))
	return parse(ctx, l, name, data, Metadata{"source": "blob", "blobType": ext})
}

func parse(ctx context.Context, l Loader, path string, raw []byte, meta Metadata) ([]Document, error) {
	docs, err := l.Parse(ctx, raw, meta)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return docs, nil
}

// LoadError reports a file that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports a file whose extension has no loader.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported file format: %s has no extension", e.Path)
	}
	return fmt.Sprintf("unsupported file format %q: %s", e.Ext, e.Path)
}
