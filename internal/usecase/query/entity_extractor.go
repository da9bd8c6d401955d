package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// EntityExtractor turns retrieved graph nodes into the set of entity names they mention.
type EntityExtractor struct {
	retriever NodeRetriever
	parser    TripletParser
	logger    *zap.Logger
}

// NewEntityExtractor creates an extractor. A nil parser selects ArrowTripletParser.
func NewEntityExtractor(retriever NodeRetriever, parser TripletParser, logger *zap.Logger) *EntityExtractor {
	if parser == nil {
		parser = ArrowTripletParser{}
	}
	return &EntityExtractor{
		retriever: retriever,
		parser:    parser,
		logger:    logger.With(zap.String("component", "entity_extractor")),
	}
}

// ExtractEntities retrieves up to topK nodes for the query and collects the subject
// and object of every triplet found in their text. Relations are never entities.
// Names are returned once each, in the order they were first seen.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	nodes, err := e.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("graph retrieval failed: %w", err)
	}

	seen := make(map[string]struct{})
	entities := []string{}
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		entities = append(entities, name)
	}

	for _, node := range nodes {
		for _, t := range e.parser.Parse(node.Text) {
			add(t.Subject)
			add(t.Object)
		}
	}

	e.logger.Debug("extracted entities",
		zap.Int("nodes", len(nodes)), zap.Strings("entities", entities))
	return entities, nil
}
