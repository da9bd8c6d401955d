package qdrant

import (
	"context"
	"fmt"

	"github.com/booksage/community-retriever/internal/domain/repository"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// NamePayloadKey is the payload field holding the entity name of a point.
const NamePayloadKey = "name"

type pointQuerier interface {
	Query(ctx context.Context, request *pb.QueryPoints) ([]*pb.ScoredPoint, error)
	Close() error
}

// Client implements repository.EntityVectorStore on top of a Qdrant collection.
type Client struct {
	client           pointQuerier
	collection       string
	similarityCutoff float32
	logger           *zap.Logger
}

// NewClient connects to Qdrant and checks that the entity collection exists.
func NewClient(ctx context.Context, host string, port int, collection string, similarityCutoff float32, logger *zap.Logger) (*Client, error) {
	client, err := pb.NewClient(&pb.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to inspect collection %q: %w", collection, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant collection %q does not exist", collection)
	}

	logger = logger.With(zap.String("component", "qdrant"))
	logger.Info("connected", zap.String("host", host), zap.Int("port", port), zap.String("collection", collection))

	return newClient(client, collection, similarityCutoff, logger), nil
}

func newClient(client pointQuerier, collection string, similarityCutoff float32, logger *zap.Logger) *Client {
	return &Client{
		client:           client,
		collection:       collection,
		similarityCutoff: similarityCutoff,
		logger:           logger,
	}
}

// SearchEntities returns the topK entity points nearest to the vector.
func (c *Client) SearchEntities(ctx context.Context, vector []float32, topK int) ([]repository.ScoredEntity, error) {
	request := &pb.QueryPoints{
		CollectionName: c.collection,
		Query:          pb.NewQuery(vector...),
		Limit:          pb.PtrOf(uint64(topK)),
		WithPayload:    pb.NewWithPayloadInclude(NamePayloadKey),
	}
	if c.similarityCutoff > 0 {
		request.ScoreThreshold = pb.PtrOf(c.similarityCutoff)
	}

	points, err := c.client.Query(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("qdrant query on collection %q failed: %w", c.collection, err)
	}

	out := make([]repository.ScoredEntity, 0, len(points))
	for _, point := range points {
		name := point.GetPayload()[NamePayloadKey].GetStringValue()
		if name == "" {
			c.logger.Debug("skipping point without entity name", zap.String("id", point.GetId().String()))
			continue
		}
		out = append(out, repository.ScoredEntity{Name: name, Score: point.GetScore()})
	}
	return out, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}
