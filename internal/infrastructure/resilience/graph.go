package resilience

import (
	"context"

	"github.com/booksage/community-retriever/internal/domain/repository"
)

// GuardedGraph routes graph reads through a circuit breaker.
type GuardedGraph struct {
	inner   repository.GraphRepository
	breaker *CircuitBreaker
}

// NewGuardedGraph wraps inner.
func NewGuardedGraph(inner repository.GraphRepository, breaker *CircuitBreaker) *GuardedGraph {
	return &GuardedGraph{inner: inner, breaker: breaker}
}

func (g *GuardedGraph) RelMap(ctx context.Context, entities []string, depth, limit int) ([]repository.Triplet, error) {
	return Call(g.breaker, func() ([]repository.Triplet, error) {
		return g.inner.RelMap(ctx, entities, depth, limit)
	})
}

func (g *GuardedGraph) CommunitySummaries(ctx context.Context, entities []string) (*repository.CommunitySummaries, error) {
	return Call(g.breaker, func() (*repository.CommunitySummaries, error) {
		return g.inner.CommunitySummaries(ctx, entities)
	})
}

// Close is not guarded.
func (g *GuardedGraph) Close(ctx context.Context) error {
	return g.inner.Close(ctx)
}

// GuardedVectorStore routes entity vector searches through a circuit breaker.
// Sharing the graph's breaker makes vector-index reads on the same database fail fast too.
type GuardedVectorStore struct {
	inner   repository.EntityVectorStore
	breaker *CircuitBreaker
}

// NewGuardedVectorStore wraps inner.
func NewGuardedVectorStore(inner repository.EntityVectorStore, breaker *CircuitBreaker) *GuardedVectorStore {
	return &GuardedVectorStore{inner: inner, breaker: breaker}
}

func (g *GuardedVectorStore) SearchEntities(ctx context.Context, vector []float32, topK int) ([]repository.ScoredEntity, error) {
	return Call(g.breaker, func() ([]repository.ScoredEntity, error) {
		return g.inner.SearchEntities(ctx, vector, topK)
	})
}
