package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/booksage/community-retriever/internal/config"
	"github.com/booksage/community-retriever/internal/domain/repository"
	"github.com/booksage/community-retriever/internal/embedding"
	"github.com/booksage/community-retriever/internal/infrastructure/llm"
	"github.com/booksage/community-retriever/internal/infrastructure/metrics"
	neo4jpkg "github.com/booksage/community-retriever/internal/infrastructure/neo4j"
	qdrantpkg "github.com/booksage/community-retriever/internal/infrastructure/qdrant"
	"github.com/booksage/community-retriever/internal/infrastructure/resilience"
	httpserver "github.com/booksage/community-retriever/internal/interface/http"
	"github.com/booksage/community-retriever/internal/usecase/query"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the gRPC health service flipped to SERVING once the
// service context is built.
const HealthServiceName = "retriever"

// StatusSetter is implemented by the gRPC health server.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// services is the set of long-lived handles built on first use.
type services struct {
	engine  *query.Engine
	closers []func(ctx context.Context) error
}

type buildFunc func(ctx context.Context) (*services, error)

// ServiceContext owns the graph store, index and query engine of the process.
// They are built once, by the first request that needs them; concurrent first
// callers share a single construction and a failed construction is retried by
// the next caller.
type ServiceContext struct {
	group  singleflight.Group
	state  atomic.Pointer[services]
	build  buildFunc
	health StatusSetter
	logger *zap.Logger
}

// NewServiceContext prepares a lazily built context from cfg.
func NewServiceContext(cfg *config.Config, collector *metrics.Collector, health StatusSetter, logger *zap.Logger) *ServiceContext {
	logger = logger.With(zap.String("component", "service_context"))
	sc := &ServiceContext{health: health, logger: logger}
	sc.build = func(ctx context.Context) (*services, error) {
		return buildServices(ctx, cfg, collector, logger)
	}
	return sc
}

// Engine returns the query engine, building the service context if needed.
func (sc *ServiceContext) Engine(ctx context.Context) (httpserver.Answerer, error) {
	if s := sc.state.Load(); s != nil {
		return s.engine, nil
	}

	v, err, shared := sc.group.Do("init", func() (any, error) {
		if s := sc.state.Load(); s != nil {
			return s, nil
		}
		sc.logger.Info("initializing graph store and index")
		s, err := sc.build(ctx)
		if err != nil {
			return nil, err
		}
		sc.state.Store(s)
		if sc.health != nil {
			sc.health.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_SERVING)
		}
		sc.logger.Info("service context ready")
		return s, nil
	})
	if err != nil {
		sc.logger.Error("service context initialization failed", zap.Error(err), zap.Bool("shared", shared))
		return nil, fmt.Errorf("service context initialization failed: %w", err)
	}
	return v.(*services).engine, nil
}

// Ready reports whether the service context has been built.
func (sc *ServiceContext) Ready() bool {
	return sc.state.Load() != nil
}

// Close releases the upstream handles, if they were built.
func (sc *ServiceContext) Close(ctx context.Context) error {
	s := sc.state.Swap(nil)
	if s == nil {
		return nil
	}
	if sc.health != nil {
		sc.health.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildServices(ctx context.Context, cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (s *services, err error) {
	s = &services{}
	defer func() {
		if err == nil {
			return
		}
		for i := len(s.closers) - 1; i >= 0; i-- {
			_ = s.closers[i](ctx)
		}
	}()

	configured, primary, err := newChatClients(ctx, cfg, logger, s)
	if err != nil {
		return s, err
	}
	var recorder llm.CallRecorder
	if collector != nil {
		recorder = collector
	}
	configured = llm.Instrument(configured, recorder)
	if primary != nil {
		primary = llm.Instrument(primary, recorder)
	}
	router := llm.NewRouter(configured, primary, cfg.AnswerLLMPolicy, logger)
	logger.Info("llm router initialized",
		zap.String("configured", configured.Name()),
		zap.Bool("primary", primary != nil),
		zap.String("policy", cfg.AnswerLLMPolicy))

	embedder, err := newEmbeddingClient(ctx, cfg, logger)
	if err != nil {
		return s, err
	}
	batcher := embedding.NewBatcher(embedder, cfg.ResolvedEmbedBatchSize(), logger)

	graph, err := neo4jpkg.NewClient(ctx, cfg.Neo4jURL, cfg.Neo4jUsername, cfg.Neo4jPassword, cfg.Neo4jDatabase, cfg.Neo4jVectorIndex, logger)
	if err != nil {
		return s, err
	}
	s.closers = append(s.closers, graph.Close)

	var (
		graphRepo repository.GraphRepository   = graph
		store     repository.EntityVectorStore = graph
	)
	if cfg.GraphBreakerThreshold > 0 {
		breaker := resilience.NewCircuitBreaker(cfg.GraphBreakerThreshold, cfg.GraphBreakerCooldown, func(from, to resilience.State) {
			logger.Warn("graph circuit breaker state changed", zap.Stringer("from", from), zap.Stringer("to", to))
		})
		graphRepo = resilience.NewGuardedGraph(graph, breaker)
		store = resilience.NewGuardedVectorStore(graph, breaker)
	}

	if cfg.VectorStore == config.VectorStoreQdrant {
		qc, err := qdrantpkg.NewClient(ctx, cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection, cfg.SimilarityCutoff, logger)
		if err != nil {
			return s, err
		}
		s.closers = append(s.closers, func(context.Context) error { return qc.Close() })
		store = qc
	}

	opts := query.GraphOptions{PathDepth: cfg.GraphPathDepth, RelLimit: cfg.GraphRelLimit}
	subRetrievers := []query.NodeRetriever{
		query.NewVectorContextRetriever(batcher, store, graphRepo, opts, cfg.SimilarityCutoff),
	}
	if cfg.SynonymRetriever {
		subRetrievers = append(subRetrievers, query.NewSynonymRetriever(router.ReasoningClient(), graphRepo, opts))
	}
	retriever := query.NewPropertyGraphRetriever(logger, subRetrievers...)

	var observer query.CommunityObserver
	if collector != nil {
		observer = collector
	}
	s.engine, err = query.NewEngine(query.EngineConfig{
		Extractor: query.NewEntityExtractor(retriever, query.ArrowTripletParser{}, logger),
		Fetcher:   query.NewCommunityFetcher(graphRepo, logger),
		Generator: query.NewBatchAnswerGenerator(router, logger),
		TopK:      cfg.SimilarityTopK,
		Observer:  observer,
		Logger:    logger,
	})
	if err != nil {
		return s, err
	}
	return s, nil
}

// newChatClients builds the client selected by LLM_PROVIDER and, when an OpenAI
// key is configured, the primary hosted client.
func newChatClients(ctx context.Context, cfg *config.Config, logger *zap.Logger, s *services) (configured, primary repository.LLMClient, err error) {
	httpClient := llm.NewHTTPClient(logger, cfg.Verbose)

	var hosted *llm.OpenAIClient
	if cfg.OpenAIAPIKey != "" {
		hosted = llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAILLMModel,
			MaxTokens:   cfg.MaxOutputTokens,
			Temperature: cfg.LLMTemperature,
			HTTPClient:  httpClient,
		}, logger)
		if cfg.VerifyCredentials {
			if err := hosted.VerifyCredentials(ctx); err != nil {
				logger.Error("OpenAI credential verification failed", zap.Error(err))
				return nil, nil, err
			}
		}
		primary = hosted
	}

	switch cfg.ResolvedLLMProvider() {
	case config.ProviderOpenAI:
		if hosted == nil {
			return nil, nil, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		configured = hosted
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiLLMModel, cfg.MaxOutputTokens, cfg.LLMTemperature, logger)
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return gemini.Close() })
		configured = gemini
	case config.ProviderTGI:
		configured = llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:     strings.TrimSuffix(cfg.TGILLMEndpoint, "/") + "/v1",
			Model:       cfg.LLMModelID,
			MaxTokens:   cfg.MaxOutputTokens,
			Temperature: cfg.LLMTemperature,
			Label:       "TGI",
			HTTPClient:  httpClient,
		}, logger)
	case config.ProviderOllama:
		ollama := llm.NewLocalOllamaClient(cfg.OllamaHost, cfg.OllamaLLMModel, logger).
			WithGenerationOptions(cfg.MaxOutputTokens, cfg.LLMTemperature).
			WithHTTPClient(httpClient)
		if err := ollama.PullModel(ctx); err != nil {
			logger.Warn("failed to pull LLM model", zap.String("model", cfg.OllamaLLMModel), zap.Error(err))
		}
		configured = ollama
	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider %q", cfg.ResolvedLLMProvider())
	}

	return configured, primary, nil
}

func newEmbeddingClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.EmbeddingClient, error) {
	httpClient := llm.NewHTTPClient(logger, cfg.Verbose)

	switch cfg.ResolvedEmbeddingProvider() {
	case config.ProviderOpenAI:
		return llm.NewOpenAIEmbedder(llm.OpenAIConfig{
			BaseURL:    cfg.OpenAIBaseURL,
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIEmbeddingModel,
			HTTPClient: httpClient,
		}), nil
	case config.ProviderTEI:
		return llm.NewOpenAIEmbedder(llm.OpenAIConfig{
			BaseURL:    strings.TrimSuffix(cfg.TEIEmbeddingEndpoint, "/") + "/v1",
			Model:      cfg.TEIEmbeddingModel,
			Label:      "TEI",
			HTTPClient: httpClient,
		}), nil
	case config.ProviderOllama:
		ollama := llm.NewLocalOllamaClient(cfg.OllamaHost, cfg.OllamaEmbedModel, logger).WithHTTPClient(httpClient)
		if err := ollama.PullModel(ctx); err != nil {
			logger.Warn("failed to pull embedding model", zap.String("model", cfg.OllamaEmbedModel), zap.Error(err))
		}
		return ollama, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.ResolvedEmbeddingProvider())
	}
}
