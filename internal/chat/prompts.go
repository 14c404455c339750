package chat

import (
	"fmt"
	"strings"
	"text/template"
)

// CondenseTemplate rephrases a follow-up into a standalone question.
const CondenseTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`

// QATemplate answers a question from retrieved context only.
const QATemplate = `You are an AI assistant providing helpful advice. You are given the following extracted parts of a long document and a question. Provide a conversational answer based on the context provided.
You should only provide hyperlinks that reference the context below. Do NOT make up hyperlinks.
If you can't find the answer in the context below, just say "Hmm, I'm not sure." Don't try to make up an answer.
If the question is not related to the context, politely respond that you are tuned to only answer questions that are related to the context.
Always answer in {{.language}}.

Question: {{.question}}
=========
{{.context}}
=========
Answer in Markdown:`

// Prompts holds the parsed templates used by a Chain.
type Prompts struct {
	condense *template.Template
	qa       *template.Template
}

// DefaultPrompts parses CondenseTemplate and QATemplate.
func DefaultPrompts() *Prompts {
	p, err := ParsePrompts(CondenseTemplate, QATemplate)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePrompts parses custom templates. Both may reference the slots
// chat_history, question, context and language.
func ParsePrompts(condense, qa string) (*Prompts, error) {
	ct, err := template.New("condense").Option("missingkey=zero").Parse(condense)
	if err != nil {
		return nil, fmt.Errorf("parsing condense template: %w", err)
	}
	qt, err := template.New("qa").Option("missingkey=zero").Parse(qa)
	if err != nil {
		return nil, fmt.Errorf("parsing qa template: %w", err)
	}
	return &Prompts{condense: ct, qa: qt}, nil
}

func render(t *template.Template, slots map[string]string) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, slots); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return sb.String(), nil
}

// FormatHistory renders turns as alternating Human/Assistant lines.
func FormatHistory(history []Turn) string {
	lines := make([]string, 0, len(history)*2)
	for _, t := range history {
		lines = append(lines, "Human: "+t.Question, "Assistant: "+t.Answer)
	}
	return strings.Join(lines, "\n")
}
