package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/casechat/casechat/internal/llm"
	"github.com/casechat/casechat/internal/vectordb"
)

// fakeLLM records every call in order. Complete answers condensation
// requests; Stream emits tokens, optionally failing after failAfter tokens.
type fakeLLM struct {
	mu          sync.Mutex
	log         *[]string
	prompts     []string
	standalone  string
	tokens      []string
	failAfter   int
	streamErr   error
	completeErr error
	block       chan struct{}
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.log = append(*f.log, "condense")
	f.prompts = append(f.prompts, req.Messages[0].Content)
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &llm.CompletionResponse{Content: f.standalone}, nil
}

func (f *fakeLLM) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	f.mu.Lock()
	*f.log = append(*f.log, "generate")
	f.prompts = append(f.prompts, req.Messages[0].Content)
	f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for i, tok := range f.tokens {
			if f.failAfter > 0 && i == f.failAfter {
				select {
				case ch <- llm.StreamChunk{Err: errors.New("connection reset")}:
				case <-ctx.Done():
				}
				return
			}
			if f.block != nil && i == 1 {
				select {
				case <-f.block:
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- llm.StreamChunk{Content: tok}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

type fakeEmbedder struct {
	log   *[]string
	texts []string
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	*e.log = append(*e.log, "embed")
	e.texts = append(e.texts, texts...)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return 2 }
func (e *fakeEmbedder) Name() string    { return "fake" }

type fakeStore struct {
	log       *[]string
	results   []vectordb.SearchResult
	err       error
	namespace string
	k         int
}

func (s *fakeStore) Upsert(context.Context, string, []vectordb.Record) error { return nil }
func (s *fakeStore) Count(context.Context, string) (int, error)             { return len(s.results), nil }
func (s *fakeStore) DeleteNamespace(context.Context, string) error          { return nil }
func (s *fakeStore) Persist(context.Context) error                          { return nil }

func (s *fakeStore) Query(_ context.Context, namespace string, _ []float32, k int) ([]vectordb.SearchResult, error) {
	*s.log = append(*s.log, "query")
	s.namespace, s.k = namespace, k
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

type harness struct {
	calls    []string
	llm      *fakeLLM
	embedder *fakeEmbedder
	store    *fakeStore
	chain    *Chain
}

func newHarness() *harness {
	h := &harness{}
	h.llm = &fakeLLM{log: &h.calls, standalone: "What is the notice period for termination?", tokens: []string{"The", " notice", " period", " is", " 30 days."}}
	h.embedder = &fakeEmbedder{log: &h.calls}
	h.store = &fakeStore{log: &h.calls, results: []vectordb.SearchResult{
		{Record: vectordb.Record{Content: "Either party may terminate with 30 days notice.", Metadata: map[string]any{"source": "docs/lease.pdf", "pdf_numpages": 4}}, Similarity: 0.9},
		{Record: vectordb.Record{Content: "Notice must be in writing.", Metadata: map[string]any{"source": "docs/lease.pdf"}}, Similarity: 0.8},
	}}
	h.chain = NewChain(h.llm, h.embedder, h.store, Options{Namespace: "pdf-test", Language: "English"})
	return h
}

func TestCallWithoutHistorySkipsCondensation(t *testing.T) {
	h := newHarness()

	var tokens []string
	res, err := h.chain.Call(context.Background(), Query{Question: "  What is the\nnotice period?  "}, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	if got := strings.Join(h.calls, ","); got != "embed,query,generate" {
		t.Errorf("call order = %s", got)
	}
	if h.embedder.texts[0] != "What is the notice period?" {
		t.Errorf("retrieval should use the normalized question, got %q", h.embedder.texts[0])
	}
	if h.store.namespace != "pdf-test" || h.store.k != DefaultK {
		t.Errorf("query used namespace %q k %d", h.store.namespace, h.store.k)
	}
	if strings.Join(tokens, "") != "The notice period is 30 days." || len(tokens) != 5 {
		t.Errorf("unexpected tokens: %q", tokens)
	}
	if res.Answer != "The notice period is 30 days." {
		t.Errorf("answer = %q", res.Answer)
	}
	if len(res.SourceDocuments) != 2 || res.SourceDocuments[0].Metadata["source"] != "docs/lease.pdf" {
		t.Errorf("unexpected sources: %+v", res.SourceDocuments)
	}

	prompt := h.llm.lastPrompt()
	for _, want := range []string{
		"Question: What is the notice period?",
		"Either party may terminate with 30 days notice.\n\nNotice must be in writing.",
		"Hmm, I'm not sure.",
		"Always answer in English.",
		"Answer in Markdown:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("qa prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestCallWithHistoryCondensesFirst(t *testing.T) {
	h := newHarness()
	q := Query{
		Question: "and for termination?",
		History:  []Turn{{Question: "What is the rent?", Answer: "1000 per month."}},
	}

	res, err := h.chain.Call(context.Background(), q, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	if got := strings.Join(h.calls, ","); got != "condense,embed,query,generate" {
		t.Errorf("call order = %s", got)
	}
	condensePrompt := h.llm.prompts[0]
	if !strings.Contains(condensePrompt, "Chat History:\nHuman: What is the rent?\nAssistant: 1000 per month.\nFollow Up Input: and for termination?") {
		t.Errorf("unexpected condense prompt:\n%s", condensePrompt)
	}
	if h.embedder.texts[0] != h.llm.standalone {
		t.Errorf("retrieval should use the standalone question, got %q", h.embedder.texts[0])
	}
	if res.Question != h.llm.standalone {
		t.Errorf("result question = %q", res.Question)
	}
}

func TestStreamEventOrder(t *testing.T) {
	h := newHarness()

	var events []Event
	for ev := range h.chain.Stream(context.Background(), Query{Question: "q"}) {
		events = append(events, ev)
	}
	if len(events) != 6 {
		t.Fatalf("expected 5 tokens and a result, got %d events", len(events))
	}
	for i, want := range h.llm.tokens {
		if events[i].Token != want {
			t.Errorf("event %d = %+v, want token %q", i, events[i], want)
		}
	}
	if events[5].Result == nil || events[5].Err != nil {
		t.Errorf("last event should be the result, got %+v", events[5])
	}
}

func TestStreamFailureAfterTokens(t *testing.T) {
	h := newHarness()
	h.llm.failAfter = 2

	var events []Event
	for ev := range h.chain.Stream(context.Background(), Query{Question: "q"}) {
		events = append(events, ev)
	}
	if len(events) != 3 {
		t.Fatalf("expected 2 tokens and an error, got %+v", events)
	}
	if events[0].Token != "The" || events[1].Token != " notice" {
		t.Errorf("tokens before failure not delivered in order: %+v", events[:2])
	}
	if !errors.Is(events[2].Err, ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", events[2].Err)
	}
}

func TestCallErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		query   Query
		wantErr error
	}{
		{
			name:    "empty question",
			query:   Query{Question: " \n "},
			wantErr: ErrEmptyQuestion,
		},
		{
			name:    "condensation failure",
			setup:   func(h *harness) { h.llm.completeErr = errors.New("timeout") },
			query:   Query{Question: "q", History: []Turn{{"a", "b"}}},
			wantErr: ErrCondensation,
		},
		{
			name:    "embedding failure",
			setup:   func(h *harness) { h.embedder.err = errors.New("401") },
			query:   Query{Question: "q"},
			wantErr: ErrRetrieval,
		},
		{
			name:    "index failure",
			setup:   func(h *harness) { h.store.err = errors.New("unreachable") },
			query:   Query{Question: "q"},
			wantErr: ErrRetrieval,
		},
		{
			name:    "stream setup failure",
			setup:   func(h *harness) { h.llm.streamErr = errors.New("quota") },
			query:   Query{Question: "q"},
			wantErr: ErrGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			if tt.setup != nil {
				tt.setup(h)
			}
			res, err := h.chain.Call(context.Background(), tt.query, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if res != nil {
				t.Errorf("expected no result, got %+v", res)
			}
		})
	}
}

func TestEmptyQuestionMakesNoCalls(t *testing.T) {
	h := newHarness()
	h.chain.Call(context.Background(), Query{Question: ""}, nil)
	if len(h.calls) != 0 {
		t.Errorf("expected no downstream calls, got %v", h.calls)
	}
}

func TestEmptyRetrievalStillAnswers(t *testing.T) {
	h := newHarness()
	h.store.results = nil
	h.llm.tokens = []string{"Hmm, I'm not sure."}

	res, err := h.chain.Call(context.Background(), Query{Question: "unrelated"}, nil)
	if err != nil {
		t.Fatalf("empty retrieval must not fail: %v", err)
	}
	if len(res.SourceDocuments) != 0 || res.Answer != "Hmm, I'm not sure." {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestStreamCancellation(t *testing.T) {
	h := newHarness()
	h.llm.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	events := h.chain.Stream(ctx, Query{Question: "q"})

	first := <-events
	if first.Token != "The" {
		t.Fatalf("expected first token, got %+v", first)
	}
	cancel()

	// The chain must close the channel without producing a result.
	for ev := range events {
		if ev.Result != nil {
			t.Errorf("no result expected after cancellation, got %+v", ev.Result)
		}
	}
}

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"  hello  ", "hello", false},
		{"line one\nline two", "line one line two", false},
		{"a\r\nb", "a b", false},
		{"\n\t ", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeQuestion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeQuestion(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeQuestion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePromptsRejectsBadTemplate(t *testing.T) {
	if _, err := ParsePrompts("{{.question", QATemplate); err == nil {
		t.Error("expected parse error")
	}
}
