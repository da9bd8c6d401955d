package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/booksage/community-retriever/internal/domain/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NodeRetriever returns the graph nodes most relevant to a query.
type NodeRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]repository.GraphNode, error)
}

// GraphOptions bounds the neighbourhood expansion around matched entities.
type GraphOptions struct {
	PathDepth int
	RelLimit  int
}

// nodeNamespace scopes the deterministic IDs of triplet nodes.
var nodeNamespace = uuid.MustParse("6f1d3c1e-2b8a-4a53-9d0e-5c7b1f2e8a41")

// tripletNodes converts triplets into nodes whose ID is derived from their text, so
// the same edge reached by two sub-retrievers collapses into one node.
func tripletNodes(triplets []repository.Triplet, score float32) []repository.GraphNode {
	nodes := make([]repository.GraphNode, 0, len(triplets))
	for _, t := range triplets {
		text := FormatTriplet(t)
		nodes = append(nodes, repository.GraphNode{
			ID:    uuid.NewSHA1(nodeNamespace, []byte(text)).String(),
			Text:  text,
			Score: score,
		})
	}
	return nodes
}

// PropertyGraphRetriever runs its sub-retrievers concurrently and merges their
// nodes, keeping the first occurrence of each node ID in sub-retriever order.
type PropertyGraphRetriever struct {
	subRetrievers []NodeRetriever
	logger        *zap.Logger
}

// NewPropertyGraphRetriever combines the given sub-retrievers.
func NewPropertyGraphRetriever(logger *zap.Logger, subRetrievers ...NodeRetriever) *PropertyGraphRetriever {
	return &PropertyGraphRetriever{
		subRetrievers: subRetrievers,
		logger:        logger.With(zap.String("component", "pg_retriever")),
	}
}

// Retrieve implements NodeRetriever.
func (r *PropertyGraphRetriever) Retrieve(ctx context.Context, query string, topK int) ([]repository.GraphNode, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	results := make([][]repository.GraphNode, len(r.subRetrievers))
	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range r.subRetrievers {
		g.Go(func() error {
			nodes, err := sub.Retrieve(gctx, query, topK)
			if err != nil {
				return err
			}
			results[i] = nodes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []repository.GraphNode
	for _, nodes := range results {
		for _, n := range nodes {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			merged = append(merged, n)
		}
	}

	r.logger.Debug("retrieved graph nodes", zap.Int("nodes", len(merged)))
	return merged, nil
}

// VectorContextRetriever embeds the query, finds the closest entities in the vector
// store and expands them to their triplet neighbourhood.
type VectorContextRetriever struct {
	embedder         repository.EmbeddingClient
	store            repository.EntityVectorStore
	graph            repository.GraphRepository
	opts             GraphOptions
	similarityCutoff float32
}

// NewVectorContextRetriever creates the vector sub-retriever. Entities scoring below
// similarityCutoff are dropped; zero disables the cutoff.
func NewVectorContextRetriever(embedder repository.EmbeddingClient, store repository.EntityVectorStore, graph repository.GraphRepository, opts GraphOptions, similarityCutoff float32) *VectorContextRetriever {
	return &VectorContextRetriever{
		embedder:         embedder,
		store:            store,
		graph:            graph,
		opts:             opts,
		similarityCutoff: similarityCutoff,
	}
}

// Retrieve implements NodeRetriever.
func (v *VectorContextRetriever) Retrieve(ctx context.Context, query string, topK int) ([]repository.GraphNode, error) {
	vectors, err := v.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("query embedding returned %d vectors, want 1", len(vectors))
	}

	hits, err := v.store.SearchEntities(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("entity vector search failed: %w", err)
	}

	var (
		names []string
		best  float32
	)
	scores := make(map[string]float32, len(hits))
	for _, hit := range hits {
		if v.similarityCutoff > 0 && hit.Score < v.similarityCutoff {
			continue
		}
		if _, seen := scores[hit.Name]; seen {
			continue
		}
		scores[hit.Name] = hit.Score
		names = append(names, hit.Name)
		if len(names) == 1 || hit.Score > best {
			best = hit.Score
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	// One rel map over every matched entity, so RelLimit bounds the whole result.
	triplets, err := v.graph.RelMap(ctx, names, v.opts.PathDepth, v.opts.RelLimit)
	if err != nil {
		return nil, fmt.Errorf("rel map for %d entities failed: %w", len(names), err)
	}

	nodes := make([]repository.GraphNode, 0, len(triplets))
	for _, t := range triplets {
		score, ok := scores[t.Subject]
		if !ok {
			if score, ok = scores[t.Object]; !ok {
				score = best
			}
		}
		nodes = append(nodes, tripletNodes([]repository.Triplet{t}, score)...)
	}
	return nodes, nil
}

const synonymPrompt = `Given some initial query, generate synonyms or related keywords up to %d in total, considering possible cases of capitalization, pluralization, common expressions, etc.
Provide all synonyms/keywords separated by '^' symbols: 'keyword1^keyword2^...'
Note, result should be in one-line, separated by '^' symbols.
----
QUERY: %s
----
KEYWORDS: `

// DefaultMaxSynonyms bounds the keywords requested from the LLM.
const DefaultMaxSynonyms = 10

// SynonymRetriever asks an LLM for keywords related to the query and returns the
// triplets around the entities with those names.
type SynonymRetriever struct {
	llm         repository.LLMClient
	graph       repository.GraphRepository
	opts        GraphOptions
	maxSynonyms int
}

// NewSynonymRetriever creates the LLM synonym sub-retriever.
func NewSynonymRetriever(llm repository.LLMClient, graph repository.GraphRepository, opts GraphOptions) *SynonymRetriever {
	return &SynonymRetriever{llm: llm, graph: graph, opts: opts, maxSynonyms: DefaultMaxSynonyms}
}

// Retrieve implements NodeRetriever. topK is not used: the keyword budget bounds the result.
func (s *SynonymRetriever) Retrieve(ctx context.Context, query string, _ int) ([]repository.GraphNode, error) {
	reply, err := s.llm.Chat(ctx, []repository.ChatMessage{
		{Role: repository.RoleUser, Content: fmt.Sprintf(synonymPrompt, s.maxSynonyms, query)},
	})
	if err != nil {
		return nil, fmt.Errorf("synonym expansion failed: %w", err)
	}

	keywords := parseKeywords(reply)
	if len(keywords) == 0 {
		return nil, nil
	}

	triplets, err := s.graph.RelMap(ctx, keywords, s.opts.PathDepth, s.opts.RelLimit)
	if err != nil {
		return nil, fmt.Errorf("rel map for synonyms failed: %w", err)
	}
	return tripletNodes(triplets, 1), nil
}

// parseKeywords splits a "a^b^c" reply into distinct, trimmed keywords.
func parseKeywords(reply string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(strings.TrimSpace(reply), "^") {
		kw := strings.Trim(strings.TrimSpace(part), `'"`)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
