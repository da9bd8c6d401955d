package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/booksage/community-retriever/internal/domain/repository"
	"go.uber.org/zap"
)

// LocalOllamaClient implements repository.LLMClient and repository.EmbeddingClient
// by calling a local Ollama server.
type LocalOllamaClient struct {
	host        string
	model       string
	maxTokens   int
	temperature float32
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewLocalOllamaClient initializes a new client for a local Ollama instance.
func NewLocalOllamaClient(host, model string, logger *zap.Logger) *LocalOllamaClient {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return &LocalOllamaClient{
		host:       host,
		model:      model,
		httpClient: http.DefaultClient,
		logger:     logger.With(zap.String("component", "llm"), zap.String("client", "ollama")),
	}
}

// WithHTTPClient replaces the HTTP client used for every call.
func (c *LocalOllamaClient) WithHTTPClient(client *http.Client) *LocalOllamaClient {
	c.httpClient = client
	return c
}

// WithGenerationOptions sets num_predict and temperature for chat calls.
func (c *LocalOllamaClient) WithGenerationOptions(maxTokens int, temperature float32) *LocalOllamaClient {
	c.maxTokens = maxTokens
	c.temperature = temperature
	return c
}

type ollamaChatRequest struct {
	Model    string                   `json:"model"`
	Messages []repository.ChatMessage `json:"messages"`
	Stream   bool                     `json:"stream"`
	Options  map[string]any           `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message repository.ChatMessage `json:"message"`
}

type ollamaEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaPullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// Chat sends the conversation to /api/chat.
func (c *LocalOllamaClient) Chat(ctx context.Context, messages []repository.ChatMessage) (string, error) {
	c.logger.Debug("sending chat request", zap.String("model", c.model))

	req := ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	}
	if c.maxTokens > 0 {
		req.Options = map[string]any{
			"num_predict": c.maxTokens,
			"temperature": c.temperature,
		}
	}

	var resp ollamaChatResponse
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// Embed generates embeddings for the given texts using Ollama's embedding API.
func (c *LocalOllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.logger.Debug("generating embeddings", zap.Int("texts", len(texts)), zap.String("model", c.model))

	var resp ollamaEmbeddingResponse
	if err := c.post(ctx, "/api/embed", ollamaEmbeddingRequest{Model: c.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned from ollama")
	}
	return resp.Embeddings, nil
}

// PullModel pulls the configured model from the Ollama library.
func (c *LocalOllamaClient) PullModel(ctx context.Context) error {
	c.logger.Info("pulling model", zap.String("model", c.model))
	return c.post(ctx, "/api/pull", ollamaPullRequest{Model: c.model, Stream: false}, nil)
}

// Name returns the descriptive name of the client.
func (c *LocalOllamaClient) Name() string {
	return fmt.Sprintf("Ollama (%s) [Local]", c.model)
}

func (c *LocalOllamaClient) post(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned error status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return nil
}
