package query

import (
	"context"
	"fmt"

	"github.com/booksage/community-retriever/internal/domain/repository"
	"go.uber.org/zap"
)

// CommunityFetcher maps entities to the summaries of the communities they belong to.
type CommunityFetcher struct {
	graph  repository.GraphRepository
	logger *zap.Logger
}

// NewCommunityFetcher creates a fetcher over the graph repository.
func NewCommunityFetcher(graph repository.GraphRepository, logger *zap.Logger) *CommunityFetcher {
	return &CommunityFetcher{
		graph:  graph,
		logger: logger.With(zap.String("component", "community_fetcher")),
	}
}

// Fetch returns the community summaries of every entity, keyed by community ID in
// first-encounter order. Entities without a community contribute nothing.
func (f *CommunityFetcher) Fetch(ctx context.Context, entities []string) (*repository.CommunitySummaries, error) {
	if len(entities) == 0 {
		return repository.NewCommunitySummaries(), nil
	}

	summaries, err := f.graph.CommunitySummaries(ctx, entities)
	if err != nil {
		return nil, fmt.Errorf("community summary fetch failed: %w", err)
	}
	if summaries == nil {
		summaries = repository.NewCommunitySummaries()
	}

	f.logger.Debug("fetched communities",
		zap.Int("entities", len(entities)), zap.Strings("community_ids", summaries.IDs()))
	return summaries, nil
}
