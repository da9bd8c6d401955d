package repository

import (
	"context"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single role/content pair sent to a chat model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient defines the interface for generating a reply to a chat conversation.
type LLMClient interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
	Name() string
}

// LLMRouter picks the client used for each kind of LLM work.
type LLMRouter interface {
	// AnswerClient returns the client that answers a query from a community summary.
	AnswerClient() LLMClient
	// ReasoningClient returns the client configured at startup.
	ReasoningClient() LLMClient
}
