package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderTGI    = "tgi"
	ProviderOllama = "ollama"
	ProviderTEI    = "tei"
)

// Answer policies decide which client generates community answers.
const (
	// PolicyPrimary sends every answer call to the primary hosted client
	// whenever its credential is configured.
	PolicyPrimary = "primary"
	// PolicyConfigured always uses the client chosen at startup.
	PolicyConfigured = "configured"
)

// Vector stores holding entity embeddings.
const (
	VectorStoreNeo4j  = "neo4j"
	VectorStoreQdrant = "qdrant"
)

// Config holds all environmentally dependent settings for the retriever service.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":6009"`
	GRPCHealthAddr  string        `env:"GRPC_HEALTH_ADDR" envDefault:":6010"`
	Verbose         bool          `env:"LOGFLAG" envDefault:"false"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"0s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Provider selection. Empty means: openai when OPENAI_API_KEY is set,
	// otherwise the self-hosted endpoints.
	LLMProvider       string `env:"LLM_PROVIDER"`
	EmbeddingProvider string `env:"EMBEDDING_PROVIDER"`
	VerifyCredentials bool   `env:"VERIFY_CREDENTIALS" envDefault:"true"`

	// Hosted OpenAI
	OpenAIAPIKey         string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL        string `env:"OPENAI_BASE_URL"`
	OpenAILLMModel       string `env:"OPENAI_LLM_MODEL" envDefault:"gpt-4o"`
	OpenAIEmbeddingModel string `env:"OPENAI_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	// Hosted Gemini
	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	GeminiLLMModel string `env:"GEMINI_LLM_MODEL" envDefault:"gemini-1.5-pro"`

	// Self-hosted TGI / vLLM and TEI
	TGILLMEndpoint       string  `env:"TGI_LLM_ENDPOINT" envDefault:"http://localhost:6005"`
	LLMModelID           string  `env:"LLM_MODEL_ID" envDefault:"meta-llama/Meta-Llama-3.1-8B-Instruct"`
	MaxOutputTokens      int     `env:"MAX_OUTPUT_TOKENS" envDefault:"1024"`
	LLMTemperature       float32 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	TEIEmbeddingEndpoint string  `env:"TEI_EMBEDDING_ENDPOINT" envDefault:"http://localhost:6006"`
	TEIEmbeddingModel    string  `env:"TEI_EMBEDDING_MODEL" envDefault:"BAAI/bge-base-en-v1.5"`
	EmbedBatchSize       int     `env:"EMBED_BATCH_SIZE" envDefault:"0"`

	// Self-hosted Ollama
	OllamaHost       string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	OllamaLLMModel   string `env:"OLLAMA_LLM_MODEL" envDefault:"llama3"`
	OllamaEmbedModel string `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`

	// Neo4j Graph DB
	Neo4jURL         string `env:"NEO4J_URL" envDefault:"bolt://localhost:7687"`
	Neo4jUsername    string `env:"NEO4J_USERNAME" envDefault:"neo4j"`
	Neo4jPassword    string `env:"NEO4J_PASSWORD" envDefault:"neo4jtest"`
	Neo4jDatabase    string `env:"NEO4J_DATABASE"`
	Neo4jVectorIndex string `env:"NEO4J_VECTOR_INDEX" envDefault:"entity"`

	// Entity vector store
	VectorStore      string `env:"VECTOR_STORE" envDefault:"neo4j"`
	QdrantHost       string `env:"QDRANT_HOST" envDefault:"localhost"`
	QdrantPort       int    `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"entities"`

	// Fail fast on a failing graph store; zero disables the breaker.
	GraphBreakerThreshold int           `env:"GRAPH_BREAKER_THRESHOLD" envDefault:"0"`
	GraphBreakerCooldown  time.Duration `env:"GRAPH_BREAKER_COOLDOWN" envDefault:"30s"`

	// Retrieval and answering
	SimilarityTopK   int     `env:"SIMILARITY_TOP_K" envDefault:"3"`
	SimilarityCutoff float32 `env:"SIMILARITY_CUTOFF" envDefault:"0"`
	GraphPathDepth   int     `env:"GRAPH_PATH_DEPTH" envDefault:"1"`
	GraphRelLimit    int     `env:"GRAPH_REL_LIMIT" envDefault:"30"`
	SynonymRetriever bool    `env:"SYNONYM_RETRIEVER" envDefault:"true"`
	AnswerBatchSize  int     `env:"ANSWER_BATCH_SIZE" envDefault:"16"`
	AnswerLLMPolicy  string  `env:"ANSWER_LLM_POLICY" envDefault:"primary"`
}

// ResolvedLLMProvider returns the provider used for the startup LLM client.
func (c *Config) ResolvedLLMProvider() string {
	if c.LLMProvider != "" {
		return c.LLMProvider
	}
	if c.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	return ProviderTGI
}

// ResolvedEmbeddingProvider returns the provider used for query embeddings.
func (c *Config) ResolvedEmbeddingProvider() string {
	if c.EmbeddingProvider != "" {
		return c.EmbeddingProvider
	}
	if c.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	return ProviderTEI
}

// ResolvedEmbedBatchSize falls back to the per-provider defaults when unset.
func (c *Config) ResolvedEmbedBatchSize() int {
	if c.EmbedBatchSize > 0 {
		return c.EmbedBatchSize
	}
	if c.ResolvedEmbeddingProvider() == ProviderOpenAI {
		return 100
	}
	return 10
}

// Validate ensures that all required configuration is present and valid.
func (c *Config) Validate() error {
	switch c.ResolvedLLMProvider() {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when LLM_PROVIDER is openai")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required when LLM_PROVIDER is gemini")
		}
	case ProviderTGI:
		if c.TGILLMEndpoint == "" {
			return errors.New("TGI_LLM_ENDPOINT is required when LLM_PROVIDER is tgi")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.ResolvedEmbeddingProvider() {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when EMBEDDING_PROVIDER is openai")
		}
	case ProviderTEI:
		if c.TEIEmbeddingEndpoint == "" {
			return errors.New("TEI_EMBEDDING_ENDPOINT is required when EMBEDDING_PROVIDER is tei")
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("unsupported EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}

	if c.Neo4jURL == "" {
		return errors.New("NEO4J_URL is required")
	}
	if c.VectorStore != VectorStoreNeo4j && c.VectorStore != VectorStoreQdrant {
		return fmt.Errorf("unsupported VECTOR_STORE %q", c.VectorStore)
	}
	if c.AnswerLLMPolicy != PolicyPrimary && c.AnswerLLMPolicy != PolicyConfigured {
		return fmt.Errorf("unsupported ANSWER_LLM_POLICY %q", c.AnswerLLMPolicy)
	}
	if c.SimilarityTopK < 1 {
		return errors.New("SIMILARITY_TOP_K must be at least 1")
	}
	if c.AnswerBatchSize < 1 {
		return errors.New("ANSWER_BATCH_SIZE must be at least 1")
	}
	if c.MaxOutputTokens < 1 {
		return errors.New("MAX_OUTPUT_TOKENS must be at least 1")
	}
	if c.GraphPathDepth < 1 {
		return errors.New("GRAPH_PATH_DEPTH must be at least 1")
	}
	return nil
}

// Load reads an optional .env file, parses the environment and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
