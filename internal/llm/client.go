package llm

import "context"

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is the interface for chat-completion backends.
type Client interface {
	// Complete runs one non-streaming chat completion and returns the
	// assistant's text content.
	Complete(ctx context.Context, model string, messages []Message) (string, error)

	// Stream runs one streaming chat completion, invoking onToken for every
	// content fragment in upstream order, and returns the accumulated text.
	Stream(ctx context.Context, model string, messages []Message, onToken func(string) error) (string, error)
}
