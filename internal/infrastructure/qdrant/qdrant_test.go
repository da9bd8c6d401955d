package qdrant

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeQuerier struct {
	request *pb.QueryPoints
	points  []*pb.ScoredPoint
	err     error
	closed  bool
}

func (f *fakeQuerier) Query(_ context.Context, request *pb.QueryPoints) ([]*pb.ScoredPoint, error) {
	f.request = request
	return f.points, f.err
}

func (f *fakeQuerier) Close() error {
	f.closed = true
	return nil
}

func scoredPoint(name string, score float32) *pb.ScoredPoint {
	payload := map[string]any{}
	if name != "" {
		payload[NamePayloadKey] = name
	}
	return &pb.ScoredPoint{
		Id:      pb.NewIDNum(1),
		Payload: pb.NewValueMap(payload),
		Score:   score,
	}
}

func TestSearchEntities(t *testing.T) {
	fake := &fakeQuerier{points: []*pb.ScoredPoint{
		scoredPoint("Alice", 0.9),
		scoredPoint("", 0.8),
		scoredPoint("Bob", 0.7),
	}}
	c := newClient(fake, "entities", 0, zaptest.NewLogger(t))

	got, err := c.SearchEntities(context.Background(), []float32{0.1, 0.2, 0.3}, 3)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Name)
	assert.InDelta(t, 0.9, got[0].Score, 1e-6)
	assert.Equal(t, "Bob", got[1].Name)

	require.NotNil(t, fake.request)
	assert.Equal(t, "entities", fake.request.GetCollectionName())
	assert.Equal(t, uint64(3), fake.request.GetLimit())
	assert.Nil(t, fake.request.ScoreThreshold)
}

func TestSearchEntities_ScoreThreshold(t *testing.T) {
	fake := &fakeQuerier{}
	c := newClient(fake, "entities", 0.5, zaptest.NewLogger(t))

	_, err := c.SearchEntities(context.Background(), []float32{1}, 2)
	require.NoError(t, err)
	require.NotNil(t, fake.request.ScoreThreshold)
	assert.InDelta(t, 0.5, fake.request.GetScoreThreshold(), 1e-6)
}

func TestSearchEntities_Error(t *testing.T) {
	fake := &fakeQuerier{err: errors.New("unavailable")}
	c := newClient(fake, "entities", 0, zaptest.NewLogger(t))

	_, err := c.SearchEntities(context.Background(), []float32{1}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `collection "entities"`)
}

func TestClose(t *testing.T) {
	fake := &fakeQuerier{}
	c := newClient(fake, "entities", 0, zaptest.NewLogger(t))
	require.NoError(t, c.Close())
	assert.True(t, fake.closed)
}
