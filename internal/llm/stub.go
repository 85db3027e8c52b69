package llm

import (
	"context"
	"strings"
)

// StubClient answers without a model: it echoes the question and the first
// line of any supplied context, one word per token. It lets the service run
// end to end offline.
type StubClient struct{}

// NewStubClient returns a StubClient.
func NewStubClient() *StubClient {
	return &StubClient{}
}

func (StubClient) Stream(ctx context.Context, messages []Message) (TokenStream, error) {
	var question, excerpt string
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			question = m.Content
		case RoleSystem:
			if i := strings.Index(m.Content, ContextHeader); i >= 0 {
				excerpt = firstLine(m.Content[i+len(ContextHeader):])
			}
		}
	}

	answer := "You asked: " + strings.TrimSpace(question) + "."
	if excerpt != "" {
		answer += " The documents mention: " + excerpt
	} else {
		answer += " I could not find this in the uploaded documents."
	}
	return NewWordStream(ctx, answer), nil
}

// ContextHeader marks the start of retrieved context in a system prompt.
const ContextHeader = "Relevant excerpts from the knowledge base:\n"

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "[") {
			return line
		}
	}
	return ""
}

// WordStream emits text word by word, keeping the separating whitespace so
// the concatenated tokens equal the input.
type WordStream struct {
	ctx    context.Context
	tokens []string
	pos    int
	err    error
}

// NewWordStream splits text into tokens that each end at a word boundary.
func NewWordStream(ctx context.Context, text string) *WordStream {
	var tokens []string
	start := 0
	for i := 1; i < len(text); i++ {
		if text[i-1] == ' ' && text[i] != ' ' {
			tokens = append(tokens, text[start:i])
			start = i
		}
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return &WordStream{ctx: ctx, tokens: tokens}
}

func (w *WordStream) Next() bool {
	if w.err != nil || w.pos >= len(w.tokens) {
		return false
	}
	if err := w.ctx.Err(); err != nil {
		w.err = err
		return false
	}
	w.pos++
	return true
}

func (w *WordStream) Token() string {
	if w.pos == 0 {
		return ""
	}
	return w.tokens[w.pos-1]
}

func (w *WordStream) Err() error { return w.err }

func (w *WordStream) Close() error {
	w.pos = len(w.tokens)
	return nil
}
