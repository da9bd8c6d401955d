package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/booksage/community-retriever/internal/domain/repository"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures a chat client speaking the OpenAI wire protocol.
type OpenAIConfig struct {
	// BaseURL overrides the hosted endpoint, e.g. "http://tgi:80/v1" for TGI or vLLM.
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	// Label is used in Name(); defaults to "OpenAI".
	Label string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// OpenAIClient implements repository.LLMClient for OpenAI and OpenAI-compatible servers.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIClient creates a chat client. Self-hosted servers accept any API key.
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.Label == "" {
		cfg.Label = "OpenAI"
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "fake"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "llm"), zap.String("client", cfg.Label)),
	}
}

// Chat sends the conversation and returns the first choice's content.
func (c *OpenAIClient) Chat(ctx context.Context, messages []repository.ChatMessage) (string, error) {
	c.logger.Debug("sending chat request", zap.String("model", c.cfg.Model), zap.Int("messages", len(messages)))

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.cfg.Temperature,
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s chat completion failed: %w", c.cfg.Label, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", c.cfg.Label)
	}

	c.logger.Debug("chat response received")
	return resp.Choices[0].Message.Content, nil
}

// VerifyCredentials lists the models visible to the key, failing on an invalid key.
func (c *OpenAIClient) VerifyCredentials(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%s credential verification failed: %w", c.cfg.Label, err)
	}
	return nil
}

// Name returns the descriptive name of the client.
func (c *OpenAIClient) Name() string {
	return fmt.Sprintf("%s (%s)", c.cfg.Label, c.cfg.Model)
}

func toOpenAIMessages(messages []repository.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// OpenAIEmbedder implements repository.EmbeddingClient against /v1/embeddings.
// TEI serves the same route, so it is reached with a BaseURL override.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	label  string
}

// NewOpenAIEmbedder creates an embedding client. MaxTokens and Temperature are ignored.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "fake"
	}
	label := cfg.Label
	if label == "" {
		label = "OpenAI"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		label:  label,
	}
}

// Embed returns one vector per input text, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%s embedding request failed: %w", e.label, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d texts", e.label, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

// Name returns the descriptive name of the client.
func (e *OpenAIEmbedder) Name() string {
	return fmt.Sprintf("%s embeddings (%s)", e.label, e.model)
}
