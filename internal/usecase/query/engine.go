package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RetrievedDoc is one answer returned to the caller.
type RetrievedDoc struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// CommunityObserver is notified of the number of communities answered per query.
type CommunityObserver interface {
	ObserveCommunities(n int)
}

// EngineConfig holds the components of an Engine.
type EngineConfig struct {
	Extractor *EntityExtractor
	Fetcher   *CommunityFetcher
	Generator *BatchAnswerGenerator
	TopK      int
	Observer  CommunityObserver
	Logger    *zap.Logger
}

// Engine answers a query from the community summaries of the entities it retrieves.
type Engine struct {
	extractor *EntityExtractor
	fetcher   *CommunityFetcher
	generator *BatchAnswerGenerator
	topK      int
	observer  CommunityObserver
	logger    *zap.Logger
}

// NewEngine validates cfg and returns a ready engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Extractor == nil || cfg.Fetcher == nil || cfg.Generator == nil {
		return nil, errors.New("engine requires an extractor, a fetcher and a generator")
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, cfg.TopK)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		extractor: cfg.Extractor,
		fetcher:   cfg.Fetcher,
		generator: cfg.Generator,
		topK:      cfg.TopK,
		observer:  cfg.Observer,
		logger:    logger.With(zap.String("component", "engine")),
	}, nil
}

// Answer runs extraction, community lookup and batched answering. A query that
// reaches no community yields an empty result, not an error.
func (e *Engine) Answer(ctx context.Context, query string, batchSize int) ([]RetrievedDoc, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	e.logger.Debug("answering query", zap.String("query", query))

	entities, err := e.extractor.ExtractEntities(ctx, query, e.topK)
	if err != nil {
		return nil, err
	}

	summaries, err := e.fetcher.Fetch(ctx, entities)
	if err != nil {
		return nil, err
	}
	if e.observer != nil {
		e.observer.ObserveCommunities(summaries.Len())
	}

	answers, err := e.generator.GenerateAnswers(ctx, summaries, query, batchSize)
	if err != nil {
		return nil, err
	}

	docs := make([]RetrievedDoc, 0, len(answers))
	for _, a := range answers {
		docs = append(docs, RetrievedDoc{Text: a, Metadata: map[string]any{}})
	}

	e.logger.Debug("query answered",
		zap.Int("entities", len(entities)), zap.Int("communities", summaries.Len()))
	return docs, nil
}
