package llm

import (
	"context"

	"github.com/booksage/community-retriever/internal/domain/repository"
	"go.uber.org/zap"
)

// Answer policies, mirrored from config to keep this package free of it.
const (
	PolicyPrimary    = "primary"
	PolicyConfigured = "configured"
)

// Router decides which client serves each kind of LLM work.
type Router struct {
	configured repository.LLMClient
	primary    repository.LLMClient
	policy     string
	logger     *zap.Logger
}

// NewRouter wires the startup client and the optional primary hosted client.
// primary may be nil when no primary credential is configured.
func NewRouter(configured, primary repository.LLMClient, policy string, logger *zap.Logger) *Router {
	return &Router{
		configured: configured,
		primary:    primary,
		policy:     policy,
		logger:     logger.With(zap.String("component", "llm_router")),
	}
}

// AnswerClient returns the primary hosted client under PolicyPrimary when one is
// configured; otherwise the client chosen at startup.
func (r *Router) AnswerClient() repository.LLMClient {
	selected := r.configured
	if r.policy == PolicyPrimary && r.primary != nil {
		selected = r.primary
	}
	r.logger.Debug("routing answer task", zap.String("client", selected.Name()))
	return selected
}

// ReasoningClient returns the client chosen at startup.
func (r *Router) ReasoningClient() repository.LLMClient {
	return r.configured
}

// CallRecorder receives one event per chat call.
type CallRecorder interface {
	RecordLLMCall(client string, err error)
}

type instrumentedClient struct {
	repository.LLMClient
	recorder CallRecorder
}

// Instrument reports every Chat call of client to recorder.
func Instrument(client repository.LLMClient, recorder CallRecorder) repository.LLMClient {
	if client == nil || recorder == nil {
		return client
	}
	return &instrumentedClient{LLMClient: client, recorder: recorder}
}

func (c *instrumentedClient) Chat(ctx context.Context, messages []repository.ChatMessage) (string, error) {
	out, err := c.LLMClient.Chat(ctx, messages)
	c.recorder.RecordLLMCall(c.LLMClient.Name(), err)
	return out, err
}
