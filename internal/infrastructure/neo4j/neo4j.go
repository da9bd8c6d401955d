package neo4j

import (
	"context"
	"fmt"

	"github.com/booksage/community-retriever/internal/domain/repository"
	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
	"go.uber.org/zap"
)

const communityQuery = `
	MATCH (e:Entity {id: $entity_id})-[:BELONGS_TO]->(c:Cluster)
	RETURN c.id AS cluster_id, c.summary AS summary
`

const vectorQuery = `
	CALL db.index.vector.queryNodes($index, $top_k, $embedding)
	YIELD node, score
	RETURN node.id AS name, score
`

// relMapQuery expands entities to their neighbourhood. The hop count cannot be
// a query parameter, so it is formatted in as an integer.
const relMapQuery = `
	WITH $ids AS id_list
	UNWIND range(0, size(id_list) - 1) AS idx
	MATCH (e:__Entity__)
	WHERE e.id = id_list[idx]
	MATCH p = (e)-[r*1..%d]-(other)
	WHERE ALL(rel IN relationships(p) WHERE type(rel) <> 'MENTIONS')
	UNWIND relationships(p) AS rel
	WITH DISTINCT rel, idx
	ORDER BY idx
	LIMIT toInteger($limit)
	RETURN startNode(rel).id AS source_id, type(rel) AS rel_type, endNode(rel).id AS target_id
`

// recordRunner runs a single Cypher statement and collects its records.
type recordRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
	Close(ctx context.Context) error
}

type sessionRunner struct {
	run   func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
	close func(ctx context.Context) error
}

func (s *sessionRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	return s.run(ctx, cypher, params)
}

func (s *sessionRunner) Close(ctx context.Context) error {
	return s.close(ctx)
}

// Client implements repository.GraphRepository and repository.EntityVectorStore
// using the official Neo4j Go driver.
type Client struct {
	driver      neo4j.Driver
	database    string
	vectorIndex string
	logger      *zap.Logger

	// seams for tests
	openSession func(ctx context.Context) recordRunner
	query       func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
}

// NewClient creates a new Neo4j client and verifies connectivity.
func NewClient(ctx context.Context, uri, user, password, database, vectorIndex string, logger *zap.Logger) (*Client, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver for %s: %w", uri, err)
	}

	logger = logger.With(zap.String("component", "neo4j"))

	if err := driver.VerifyConnectivity(ctx); err != nil {
		if closeErr := driver.Close(ctx); closeErr != nil {
			logger.Warn("failed to close driver after connectivity check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to verify Neo4j connectivity at %s: %w", uri, err)
	}

	logger.Info("connected", zap.String("uri", uri), zap.String("user", user))

	c := &Client{
		driver:      driver,
		database:    database,
		vectorIndex: vectorIndex,
		logger:      logger,
	}
	c.openSession = c.newReadSession
	c.query = c.executeQuery
	return c, nil
}

func (c *Client) newReadSession(ctx context.Context) recordRunner {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	return &sessionRunner{
		run: func(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
			result, err := session.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}
			return result.Collect(ctx)
		},
		close: session.Close,
	}
}

func (c *Client) executeQuery(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// CommunitySummaries fetches every community each entity belongs to. One session
// serves the whole fetch; one query is issued per entity, sequentially. A community
// reached from several entities keeps its first position.
func (c *Client) CommunitySummaries(ctx context.Context, entities []string) (out *repository.CommunitySummaries, err error) {
	out = repository.NewCommunitySummaries()
	if len(entities) == 0 {
		return out, nil
	}

	session := c.openSession(ctx)
	defer func() {
		if closeErr := session.Close(ctx); closeErr != nil && err == nil {
			c.logger.Warn("failed to close session", zap.Error(closeErr))
		}
	}()

	for _, entity := range entities {
		records, err := session.Run(ctx, communityQuery, map[string]any{"entity_id": entity})
		if err != nil {
			return nil, fmt.Errorf("neo4j community lookup failed for entity %q: %w", entity, err)
		}

		for _, record := range records {
			rawID, ok := record.Get("cluster_id")
			if !ok || rawID == nil {
				continue
			}
			summary, _, err := neo4j.GetRecordValue[string](record, "summary")
			if err != nil {
				return nil, fmt.Errorf("neo4j result parse failed for entity %q: %w", entity, err)
			}
			out.Put(fmt.Sprint(rawID), summary)
		}
	}

	c.logger.Debug("fetched community summaries",
		zap.Int("entities", len(entities)), zap.Strings("community_ids", out.IDs()))
	return out, nil
}

// RelMap returns the triplets around the given entities.
func (c *Client) RelMap(ctx context.Context, entities []string, depth, limit int) ([]repository.Triplet, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	if depth < 1 {
		depth = 1
	}

	records, err := c.query(ctx, fmt.Sprintf(relMapQuery, depth), map[string]any{
		"ids":   entities,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j rel map failed: %w", err)
	}

	triplets := make([]repository.Triplet, 0, len(records))
	for _, record := range records {
		source, _, _ := neo4j.GetRecordValue[string](record, "source_id")
		relType, _, _ := neo4j.GetRecordValue[string](record, "rel_type")
		target, _, _ := neo4j.GetRecordValue[string](record, "target_id")
		if source == "" || relType == "" || target == "" {
			continue
		}
		triplets = append(triplets, repository.Triplet{Subject: source, Relation: relType, Object: target})
	}
	return triplets, nil
}

// SearchEntities queries the entity vector index.
func (c *Client) SearchEntities(ctx context.Context, vector []float32, topK int) ([]repository.ScoredEntity, error) {
	records, err := c.query(ctx, vectorQuery, map[string]any{
		"index":     c.vectorIndex,
		"top_k":     topK,
		"embedding": vector,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j vector query on index %q failed: %w", c.vectorIndex, err)
	}

	out := make([]repository.ScoredEntity, 0, len(records))
	for _, record := range records {
		name, _, _ := neo4j.GetRecordValue[string](record, "name")
		score, _, _ := neo4j.GetRecordValue[float64](record, "score")
		if name == "" {
			continue
		}
		out = append(out, repository.ScoredEntity{Name: name, Score: float32(score)})
	}
	return out, nil
}

// Close closes the underlying Neo4j driver.
func (c *Client) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}
