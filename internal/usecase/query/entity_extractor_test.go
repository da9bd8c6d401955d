package query

import (
	"context"
	"errors"
	"testing"

	"github.com/booksage/community-retriever/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestExtractEntities_SubjectsAndObjectsOnly(t *testing.T) {
	retriever := &mockNodeRetriever{nodes: textNodes("Paris -> capitalOf -> France")}
	extractor := NewEntityExtractor(retriever, nil, zaptest.NewLogger(t))

	entities, err := extractor.ExtractEntities(context.Background(), "capital of France?", 3)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Paris", "France"}, entities)
	assert.NotContains(t, entities, "capitalOf")
	assert.Equal(t, 3, retriever.topK)
}

func TestExtractEntities_DeduplicatesInFirstSeenOrder(t *testing.T) {
	retriever := &mockNodeRetriever{nodes: textNodes(
		"Alice -> KNOWS -> Bob",
		"some prose without structure",
		"Bob -> MEMBER_OF -> Chess Club",
		"Alice -> PLAYS -> Chess",
	)}
	extractor := NewEntityExtractor(retriever, nil, zaptest.NewLogger(t))

	entities, err := extractor.ExtractEntities(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Chess Club", "Chess"}, entities)
}

func TestExtractEntities_NothingFound(t *testing.T) {
	tests := []struct {
		name  string
		nodes []string
	}{
		{name: "no nodes"},
		{name: "no triplets", nodes: []string{"plain text", "more text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := NewEntityExtractor(&mockNodeRetriever{nodes: textNodes(tt.nodes...)}, nil, zaptest.NewLogger(t))

			entities, err := extractor.ExtractEntities(context.Background(), "q", 3)
			require.NoError(t, err)
			assert.NotNil(t, entities)
			assert.Empty(t, entities)
		})
	}
}

func TestExtractEntities_InvalidTopK(t *testing.T) {
	retriever := &mockNodeRetriever{}
	extractor := NewEntityExtractor(retriever, nil, zaptest.NewLogger(t))

	for _, topK := range []int{0, -1} {
		_, err := extractor.ExtractEntities(context.Background(), "q", topK)
		assert.ErrorIs(t, err, ErrInvalidTopK)
	}
	assert.Zero(t, retriever.topK, "retrieval must not run")
}

func TestExtractEntities_RetrievalError(t *testing.T) {
	boom := errors.New("vector index offline")
	extractor := NewEntityExtractor(&mockNodeRetriever{err: boom}, nil, zaptest.NewLogger(t))

	_, err := extractor.ExtractEntities(context.Background(), "q", 3)
	assert.ErrorIs(t, err, boom)
}

type fixedParser struct{}

func (fixedParser) Parse(string) []repository.Triplet {
	return []repository.Triplet{{Subject: "X", Relation: "R", Object: "Y"}}
}

func TestExtractEntities_CustomParser(t *testing.T) {
	extractor := NewEntityExtractor(&mockNodeRetriever{nodes: textNodes("anything")}, fixedParser{}, zaptest.NewLogger(t))

	entities, err := extractor.ExtractEntities(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, entities)
}
