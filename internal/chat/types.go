package chat

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyQuestion is returned when a question is blank after
	// normalization.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrCondensation wraps failures rephrasing a follow-up question.
	ErrCondensation = errors.New("condensing question")

	// ErrRetrieval wraps embedding and index failures.
	ErrRetrieval = errors.New("retrieving context")

	// ErrGeneration wraps failures producing the answer.
	ErrGeneration = errors.New("generating answer")
)

// Turn is one earlier exchange in a conversation.
type Turn struct {
	Question string
	Answer   string
}

// Query is a question plus the conversation so far, oldest first.
type Query struct {
	Question string
	History  []Turn
}

// Source is a retrieved chunk as returned to clients.
type Source struct {
	PageContent string         `json:"pageContent"`
	Metadata    map[string]any `json:"metadata"`
}

// Result is the outcome of a completed chain run.
type Result struct {
	// Question is the standalone question used for retrieval and
	// generation.
	Question        string
	Answer          string
	SourceDocuments []Source
}

// Event is one item on the stream returned by Chain.Stream. Exactly one
// field is set. Tokens arrive in generation order; the final event carries
// either Result or Err.
type Event struct {
	Token  string
	Result *Result
	Err    error
}

// NormalizeQuestion trims the question and flattens newlines to spaces.
func NormalizeQuestion(q string) (string, error) {
	q = strings.TrimSpace(q)
	q = strings.ReplaceAll(q, "\r\n", " ")
	q = strings.ReplaceAll(q, "\n", " ")
	if q == "" {
		return "", ErrEmptyQuestion
	}
	return q, nil
}
