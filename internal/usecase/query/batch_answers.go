package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/booksage/community-retriever/internal/domain/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of communities answered concurrently.
const DefaultBatchSize = 16

const (
	communitySystemPrompt = "Given the community summary: %s, how would you answer the following query? Query: %s"
	communityUserPrompt   = "I need an answer based on the above information."
)

var assistantPrefix = regexp.MustCompile(`^assistant:\s*`)

// BatchAnswerGenerator asks the LLM to answer the query once per community summary.
type BatchAnswerGenerator struct {
	router repository.LLMRouter
	logger *zap.Logger
}

// NewBatchAnswerGenerator creates a generator using the router's answer client.
func NewBatchAnswerGenerator(router repository.LLMRouter, logger *zap.Logger) *BatchAnswerGenerator {
	return &BatchAnswerGenerator{
		router: router,
		logger: logger.With(zap.String("component", "batch_answers")),
	}
}

// GenerateAnswers returns one answer per community, in the order of summaries.IDs().
// Communities are processed in consecutive batches of batchSize; calls inside a batch
// run concurrently and the next batch starts once the previous one is done. The first
// LLM error aborts the whole generation.
func (g *BatchAnswerGenerator) GenerateAnswers(ctx context.Context, summaries *repository.CommunitySummaries, query string, batchSize int) ([]string, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	ids := summaries.IDs()
	if len(ids) == 0 {
		return []string{}, nil
	}

	client := g.router.AnswerClient()
	answers := make([]string, 0, len(ids))

	for b, batch := range partitionBatches(ids, batchSize) {
		g.logger.Debug("answering batch",
			zap.Int("batch", b), zap.Int("size", len(batch)), zap.String("client", client.Name()))

		results := make([]string, len(batch))
		eg, egctx := errgroup.WithContext(ctx)
		for i, id := range batch {
			summary, _ := summaries.Get(id)
			eg.Go(func() error {
				reply, err := client.Chat(egctx, communityMessages(summary, query))
				if err != nil {
					return fmt.Errorf("answer for community %s failed: %w", id, err)
				}
				results[i] = cleanAnswer(reply)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		answers = append(answers, results...)
	}

	return answers, nil
}

// partitionBatches splits ids into consecutive chunks of at most size elements.
func partitionBatches(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

func communityMessages(summary, query string) []repository.ChatMessage {
	return []repository.ChatMessage{
		{Role: repository.RoleSystem, Content: fmt.Sprintf(communitySystemPrompt, summary, query)},
		{Role: repository.RoleUser, Content: communityUserPrompt},
	}
}

// cleanAnswer drops a leading "assistant:" role label and surrounding whitespace.
func cleanAnswer(reply string) string {
	return strings.TrimSpace(assistantPrefix.ReplaceAllString(reply, ""))
}
