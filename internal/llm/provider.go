package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Stream sends a completion request and delivers the response as an
	// ordered sequence of token chunks. The channel is closed when the
	// response is complete, the request fails, or ctx is cancelled. A
	// failure is reported as a final chunk with Err set.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
	// Name returns the name of this provider.
	Name() string
}

// send delivers a chunk unless ctx is done first.
func send(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
