// Package chat answers questions about the ingested corpus with a
// conversational retrieval chain.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/casechat/casechat/internal/embeddings"
	"github.com/casechat/casechat/internal/llm"
	"github.com/casechat/casechat/internal/vectordb"
)

// DefaultK is the number of chunks retrieved per question.
const DefaultK = 2

// Options tunes a Chain.
type Options struct {
	Namespace   string
	K           int
	Model       string
	Temperature float32
	Language    string
	Prompts     *Prompts
}

// Chain runs condense -> retrieve -> generate for one question at a time.
// It holds no per-request state and is safe for concurrent use.
type Chain struct {
	llm      llm.Provider
	embedder embeddings.Embedder
	store    vectordb.VectorStore
	opts     Options
}

// NewChain creates a Chain. Zero-valued options fall back to DefaultK, the
// built-in prompts and Chinese answers.
func NewChain(provider llm.Provider, embedder embeddings.Embedder, store vectordb.VectorStore, opts Options) *Chain {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.Prompts == nil {
		opts.Prompts = DefaultPrompts()
	}
	if opts.Language == "" {
		opts.Language = "中文"
	}
	return &Chain{
		llm:      provider,
		embedder: embedder,
		store:    store,
		opts:     opts,
	}
}

// Stream runs the chain and returns its events. The channel is closed after
// the final Result or Err event, or as soon as ctx is done.
func (c *Chain) Stream(ctx context.Context, q Query) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		res, err := c.run(ctx, q, func(tok string) bool {
			return emit(ctx, ch, Event{Token: tok})
		})
		if err != nil {
			emit(ctx, ch, Event{Err: err})
			return
		}
		emit(ctx, ch, Event{Result: res})
	}()
	return ch
}

// Call runs the chain to completion, passing each token to onToken as it
// is generated. onToken may be nil.
func (c *Chain) Call(ctx context.Context, q Query, onToken func(string)) (*Result, error) {
	var (
		res *Result
		err error
	)
	for ev := range c.Stream(ctx, q) {
		switch {
		case ev.Err != nil:
			err = ev.Err
		case ev.Result != nil:
			res = ev.Result
		default:
			if onToken != nil {
				onToken(ev.Token)
			}
		}
	}
	if err == nil && res == nil {
		err = fmt.Errorf("%w: %w", ErrGeneration, ctx.Err())
	}
	return res, err
}

// Retrieve returns the k chunks nearest to query. k <= 0 uses the chain's
// configured K.
func (c *Chain) Retrieve(ctx context.Context, query string, k int) ([]vectordb.SearchResult, error) {
	if k <= 0 {
		k = c.opts.K
	}
	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedder returned %d vectors", ErrRetrieval, len(vectors))
	}
	results, err := c.store.Query(ctx, c.opts.Namespace, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	return results, nil
}

func (c *Chain) run(ctx context.Context, q Query, onToken func(string) bool) (*Result, error) {
	question, err := NormalizeQuestion(q.Question)
	if err != nil {
		return nil, err
	}

	standalone := question
	if len(q.History) > 0 {
		standalone, err = c.condense(ctx, question, q.History)
		if err != nil {
			return nil, err
		}
	}

	results, err := c.Retrieve(ctx, standalone, c.opts.K)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, len(results))
	contents := make([]string, len(results))
	for i, r := range results {
		sources[i] = Source{PageContent: r.Record.Content, Metadata: r.Record.Metadata}
		contents[i] = r.Record.Content
	}

	prompt, err := render(c.opts.Prompts.qa, map[string]string{
		"question": standalone,
		"context":  strings.Join(contents, "\n\n"),
		"language": c.opts.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	answer, err := c.generate(ctx, prompt, onToken)
	if err != nil {
		return nil, err
	}

	return &Result{
		Question:        standalone,
		Answer:          answer,
		SourceDocuments: sources,
	}, nil
}

func (c *Chain) condense(ctx context.Context, question string, history []Turn) (string, error) {
	prompt, err := render(c.opts.Prompts.condense, map[string]string{
		"chat_history": FormatHistory(history),
		"question":     question,
		"language":     c.opts.Language,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCondensation, err)
	}

	resp, err := c.llm.Complete(ctx, c.request(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCondensation, err)
	}
	if s := strings.TrimSpace(resp.Content); s != "" {
		return s, nil
	}
	return question, nil
}

func (c *Chain) generate(ctx context.Context, prompt string, onToken func(string) bool) (string, error) {
	stream, err := c.llm.Stream(ctx, c.request(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	var answer strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			return "", fmt.Errorf("%w: %w", ErrGeneration, chunk.Err)
		}
		answer.WriteString(chunk.Content)
		if !onToken(chunk.Content) {
			break
		}
	}
	// Providers close the stream without an error chunk on cancellation.
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return answer.String(), nil
}

func (c *Chain) request(prompt string) llm.CompletionRequest {
	return llm.CompletionRequest{
		Model:       c.opts.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: c.opts.Temperature,
	}
}

func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
