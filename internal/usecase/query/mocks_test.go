package query

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/booksage/community-retriever/internal/domain/repository"
)

type mockNodeRetriever struct {
	nodes []repository.GraphNode
	err   error
	topK  int
}

func (m *mockNodeRetriever) Retrieve(_ context.Context, _ string, topK int) ([]repository.GraphNode, error) {
	m.topK = topK
	return m.nodes, m.err
}

func textNodes(texts ...string) []repository.GraphNode {
	nodes := make([]repository.GraphNode, 0, len(texts))
	for _, text := range texts {
		nodes = append(nodes, repository.GraphNode{ID: text, Text: text})
	}
	return nodes
}

// mockGraph serves a fixed BELONGS_TO membership and a fixed triplet neighbourhood.
type mockGraph struct {
	mu          sync.Mutex
	memberships map[string][]string // entity -> community IDs
	summaries   map[string]string   // community ID -> summary
	neighbours  map[string][]repository.Triplet
	fetchErr    error
	relMapErr   error
	fetchCalls  int
	relMapCalls [][]string
	relMapLimit []int
}

func (m *mockGraph) RelMap(_ context.Context, entities []string, _, limit int) ([]repository.Triplet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relMapCalls = append(m.relMapCalls, entities)
	m.relMapLimit = append(m.relMapLimit, limit)
	if m.relMapErr != nil {
		return nil, m.relMapErr
	}
	var out []repository.Triplet
	for _, e := range entities {
		out = append(out, m.neighbours[e]...)
	}
	return out, nil
}

func (m *mockGraph) CommunitySummaries(_ context.Context, entities []string) (*repository.CommunitySummaries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := repository.NewCommunitySummaries()
	for _, e := range entities {
		for _, id := range m.memberships[e] {
			out.Put(id, m.summaries[id])
		}
	}
	return out, nil
}

func (m *mockGraph) Close(context.Context) error { return nil }

// mockLLMClient answers "assistant: <summary>" for community prompts and tracks concurrency.
type mockLLMClient struct {
	name     string
	reply    func(messages []repository.ChatMessage) (string, error)
	delay    func(messages []repository.ChatMessage) time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu       sync.Mutex
	messages [][]repository.ChatMessage
}

func (m *mockLLMClient) Chat(ctx context.Context, messages []repository.ChatMessage) (string, error) {
	m.calls.Add(1)
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if current <= seen || m.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}

	m.mu.Lock()
	m.messages = append(m.messages, messages)
	m.mu.Unlock()

	if m.delay != nil {
		select {
		case <-time.After(m.delay(messages)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.reply != nil {
		return m.reply(messages)
	}
	return "assistant: " + summaryOf(messages), nil
}

func (m *mockLLMClient) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

// summaryOf recovers the community summary from the system prompt.
func summaryOf(messages []repository.ChatMessage) string {
	s := strings.TrimPrefix(messages[0].Content, "Given the community summary: ")
	if i := strings.Index(s, ", how would you answer"); i >= 0 {
		return s[:i]
	}
	return s
}

type mockRouter struct {
	answer    repository.LLMClient
	reasoning repository.LLMClient
}

func (m *mockRouter) AnswerClient() repository.LLMClient    { return m.answer }
func (m *mockRouter) ReasoningClient() repository.LLMClient { return m.reasoning }

type mockEmbedder struct {
	vector []float32
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector
	}
	return out, nil
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

type mockVectorStore struct {
	hits []repository.ScoredEntity
	err  error
	topK int
}

func (m *mockVectorStore) SearchEntities(_ context.Context, _ []float32, topK int) ([]repository.ScoredEntity, error) {
	m.topK = topK
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > topK {
		return m.hits[:topK], nil
	}
	return m.hits, nil
}
