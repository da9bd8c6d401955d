package repository

import (
	"context"
)

// GraphNode is one retrieved node of the property graph. Text follows the
// triplet convention "subject -> relation -> object" when the node encodes an edge.
type GraphNode struct {
	ID    string
	Text  string
	Score float32
}

// Triplet is a single edge of the knowledge graph.
type Triplet struct {
	Subject  string
	Relation string
	Object   string
}

// ScoredEntity is an entity returned by a vector similarity query.
type ScoredEntity struct {
	Name  string
	Score float32
}

// EntityVectorStore finds entities whose embeddings are closest to a query vector.
type EntityVectorStore interface {
	SearchEntities(ctx context.Context, vector []float32, topK int) ([]ScoredEntity, error)
}

// GraphRepository defines the read operations needed from the property graph.
type GraphRepository interface {
	// RelMap returns the triplets reachable from the given entities within depth hops.
	RelMap(ctx context.Context, entities []string, depth, limit int) ([]Triplet, error)
	// CommunitySummaries returns every community the entities belong to, in encounter order.
	CommunitySummaries(ctx context.Context, entities []string) (*CommunitySummaries, error)
	Close(ctx context.Context) error
}
