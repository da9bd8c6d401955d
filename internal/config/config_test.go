package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "LLM_PROVIDER", "EMBEDDING_PROVIDER", "LOGFLAG"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":6009", cfg.HTTPAddr)
	assert.Equal(t, ":6010", cfg.GRPCHealthAddr)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4jURL)
	assert.Equal(t, "neo4j", cfg.Neo4jUsername)
	assert.Equal(t, 3, cfg.SimilarityTopK)
	assert.Equal(t, 16, cfg.AnswerBatchSize)
	assert.Equal(t, 1024, cfg.MaxOutputTokens)
	assert.Equal(t, PolicyPrimary, cfg.AnswerLLMPolicy)
	assert.Equal(t, VectorStoreNeo4j, cfg.VectorStore)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.VerifyCredentials)
	assert.False(t, cfg.Verbose)
	assert.Zero(t, cfg.GraphBreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.GraphBreakerCooldown)

	// Without an OpenAI key the self-hosted endpoints are used.
	assert.Equal(t, ProviderTGI, cfg.ResolvedLLMProvider())
	assert.Equal(t, ProviderTEI, cfg.ResolvedEmbeddingProvider())
	assert.Equal(t, 10, cfg.ResolvedEmbedBatchSize())
}

func TestLoadWithOpenAIKey(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.ResolvedLLMProvider())
	assert.Equal(t, ProviderOpenAI, cfg.ResolvedEmbeddingProvider())
	assert.Equal(t, 100, cfg.ResolvedEmbedBatchSize())
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAILLMModel)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("NEO4J_URL", "neo4j://graph:7688")
	t.Setenv("NEO4J_USERNAME", "admin")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("SIMILARITY_TOP_K", "7")
	t.Setenv("ANSWER_BATCH_SIZE", "4")
	t.Setenv("ANSWER_LLM_POLICY", "configured")
	t.Setenv("VECTOR_STORE", "qdrant")
	t.Setenv("QDRANT_PORT", "6335")
	t.Setenv("REQUEST_TIMEOUT", "45s")
	t.Setenv("LOGFLAG", "true")
	t.Setenv("EMBED_BATCH_SIZE", "32")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.ResolvedLLMProvider())
	assert.Equal(t, ProviderOllama, cfg.ResolvedEmbeddingProvider())
	assert.Equal(t, "neo4j://graph:7688", cfg.Neo4jURL)
	assert.Equal(t, "admin", cfg.Neo4jUsername)
	assert.Equal(t, "secret", cfg.Neo4jPassword)
	assert.Equal(t, 7, cfg.SimilarityTopK)
	assert.Equal(t, 4, cfg.AnswerBatchSize)
	assert.Equal(t, PolicyConfigured, cfg.AnswerLLMPolicy)
	assert.Equal(t, VectorStoreQdrant, cfg.VectorStore)
	assert.Equal(t, 6335, cfg.QdrantPort)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 32, cfg.ResolvedEmbedBatchSize())
}

func TestLoadWithInvalidInt(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("QDRANT_PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			TGILLMEndpoint:       "http://tgi",
			TEIEmbeddingEndpoint: "http://tei",
			Neo4jURL:             "bolt://localhost:7687",
			VectorStore:          VectorStoreNeo4j,
			AnswerLLMPolicy:      PolicyPrimary,
			SimilarityTopK:       3,
			AnswerBatchSize:      16,
			MaxOutputTokens:      1024,
			GraphPathDepth:       1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid self-hosted", mutate: func(c *Config) {}},
		{name: "openai without key", mutate: func(c *Config) { c.LLMProvider = ProviderOpenAI }, wantErr: true},
		{name: "gemini without key", mutate: func(c *Config) { c.LLMProvider = ProviderGemini }, wantErr: true},
		{name: "gemini with key", mutate: func(c *Config) { c.LLMProvider = ProviderGemini; c.GeminiAPIKey = "g" }},
		{name: "unknown provider", mutate: func(c *Config) { c.LLMProvider = "bogus" }, wantErr: true},
		{name: "unknown embedding provider", mutate: func(c *Config) { c.EmbeddingProvider = "bogus" }, wantErr: true},
		{name: "missing tgi endpoint", mutate: func(c *Config) { c.TGILLMEndpoint = "" }, wantErr: true},
		{name: "missing neo4j url", mutate: func(c *Config) { c.Neo4jURL = "" }, wantErr: true},
		{name: "unknown vector store", mutate: func(c *Config) { c.VectorStore = "milvus" }, wantErr: true},
		{name: "unknown policy", mutate: func(c *Config) { c.AnswerLLMPolicy = "random" }, wantErr: true},
		{name: "zero top-k", mutate: func(c *Config) { c.SimilarityTopK = 0 }, wantErr: true},
		{name: "zero batch size", mutate: func(c *Config) { c.AnswerBatchSize = 0 }, wantErr: true},
		{name: "zero path depth", mutate: func(c *Config) { c.GraphPathDepth = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
