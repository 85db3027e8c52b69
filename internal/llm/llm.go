// Package llm streams chat completions from a language model.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// TokenStream yields answer text incrementally. Next blocks until a token is
// available; it returns false at the end of the answer or on failure, after
// which Err reports the failure, if any.
type TokenStream interface {
	Next() bool
	Token() string
	Err() error
	Close() error
}

// Client is a minimal LLM interface to allow pluggable providers.
type Client interface {
	// Stream starts generating a reply to messages. Canceling ctx aborts
	// the generation.
	Stream(ctx context.Context, messages []Message) (TokenStream, error)
}
