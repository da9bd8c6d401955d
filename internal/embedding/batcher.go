package embedding

import (
	"context"
	"fmt"

	"github.com/booksage/community-retriever/internal/domain/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batcher splits embedding requests so that no single upstream call carries
// more than batchSize texts.
type Batcher struct {
	client    repository.EmbeddingClient
	batchSize int
	logger    *zap.Logger
}

// NewBatcher creates a new embedding batcher. A non-positive batchSize sends everything at once.
func NewBatcher(client repository.EmbeddingClient, batchSize int, logger *zap.Logger) *Batcher {
	return &Batcher{
		client:    client,
		batchSize: batchSize,
		logger:    logger.With(zap.String("component", "embedding_batcher")),
	}
}

// Embed runs the batches concurrently and reassembles the vectors in input order.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	size := b.batchSize
	if size <= 0 {
		size = len(texts)
	}
	numBatches := (len(texts) + size - 1) / size

	b.logger.Debug("splitting embedding request",
		zap.Int("texts", len(texts)), zap.Int("batches", numBatches), zap.Int("batch_size", size))

	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < numBatches; i++ {
		start := i * size
		end := min(start+size, len(texts))

		g.Go(func() error {
			vecs, err := b.client.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch %d failed: %w", i, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("batch %d: expected %d embeddings, got %d", i, end-start, len(vecs))
			}
			// Each goroutine owns a disjoint range of results.
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Name returns the name of the wrapped client.
func (b *Batcher) Name() string {
	return b.client.Name()
}
