package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/booksage/community-retriever/internal/usecase/query"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SuccessMessage is returned in the messages field of every successful retrieval.
const SuccessMessage = "Retrieval of answers from community summaries successful"

// ErrNoMessages is returned when a request carries no usable message.
var ErrNoMessages = errors.New("request must contain at least one message")

// Answerer answers a query from community summaries.
type Answerer interface {
	Answer(ctx context.Context, query string, batchSize int) ([]query.RetrievedDoc, error)
}

// EngineProvider hands out the query engine, building it on first use.
type EngineProvider interface {
	Engine(ctx context.Context) (Answerer, error)
	Ready() bool
}

// LatencyRecorder receives one sample per retrieval invocation.
type LatencyRecorder interface {
	ObserveRetrieval(d time.Duration, err error)
}

// Options tune request handling.
type Options struct {
	BatchSize      int
	RequestTimeout time.Duration
	Metrics        http.Handler
}

// Server holds the dependencies for the HTTP API server
type Server struct {
	engines EngineProvider
	latency LatencyRecorder
	opts    Options
	logger  *zap.Logger
}

// NewServer initializes a new API server with the required dependencies
func NewServer(engines EngineProvider, latency LatencyRecorder, opts Options, logger *zap.Logger) *Server {
	return &Server{
		engines: engines,
		latency: latency,
		opts:    opts,
		logger:  logger.With(zap.String("component", "http")),
	}
}

// RegisterRoutes registers all API endpoints with a new ServeMux
func (s *Server) RegisterRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/retrieval", s.handleRetrieval)
	mux.HandleFunc("GET /v1/health_check", s.handleHealthCheck)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}

	return mux
}

// ChatMessage is one entry of a list-shaped messages field.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RetrievalRequest is the chat-completion-shaped request body. Messages is either
// a plain string or a list of role/content objects.
type RetrievalRequest struct {
	Messages json.RawMessage `json:"messages"`
	Model    string          `json:"model,omitempty"`
}

// Query returns the query text carried by the request: the string itself, or
// the content of the first message of a list.
func (r *RetrievalRequest) Query() (string, error) {
	raw := strings.TrimSpace(string(r.Messages))
	if raw == "" || raw == "null" {
		return "", ErrNoMessages
	}

	if strings.HasPrefix(raw, `"`) {
		var text string
		if err := json.Unmarshal(r.Messages, &text); err != nil {
			return "", fmt.Errorf("invalid messages string: %w", err)
		}
		return text, nil
	}

	var list []ChatMessage
	if err := json.Unmarshal(r.Messages, &list); err != nil {
		return "", fmt.Errorf("messages must be a string or a list of messages: %w", err)
	}
	if len(list) == 0 {
		return "", ErrNoMessages
	}
	return list[0].Content, nil
}

// RetrievalResponse is returned by POST /v1/retrieval.
type RetrievalResponse struct {
	ID            string               `json:"id"`
	Messages      string               `json:"messages"`
	RetrievedDocs []query.RetrievedDoc `json:"retrieved_docs"`
	Documents     []string             `json:"documents"`
}

func (s *Server) handleRetrieval(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := s.logger.With(zap.String("request_id", requestID))

	var err error
	defer func() {
		if s.latency != nil {
			s.latency.ObserveRetrieval(time.Since(start), err)
		}
	}()

	var req RetrievalRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	var q string
	q, err = req.Query()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(q) == "" {
		err = query.ErrEmptyQuery
		http.Error(w, "Query field is required", http.StatusBadRequest)
		return
	}
	logger.Info("query received", zap.String("query", q))

	// In-flight graph and LLM calls outlive a disconnected caller.
	ctx := context.WithoutCancel(r.Context())
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	var engine Answerer
	engine, err = s.engines.Engine(ctx)
	if err != nil {
		logger.Error("service initialization failed", zap.Error(err))
		http.Error(w, "Service initialization failed", http.StatusInternalServerError)
		return
	}

	var docs []query.RetrievedDoc
	docs, err = engine.Answer(ctx, q, s.opts.BatchSize)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuery) {
			http.Error(w, "Query field is required", http.StatusBadRequest)
			return
		}
		logger.Error("retrieval failed", zap.Error(err))
		http.Error(w, "Retrieval failed", http.StatusInternalServerError)
		return
	}

	if docs == nil {
		docs = []query.RetrievedDoc{}
	}
	resp := RetrievalResponse{
		ID:            requestID,
		Messages:      SuccessMessage,
		RetrievedDocs: docs,
		Documents:     make([]string, 0, len(docs)),
	}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, d.Text)
	}

	logger.Debug("retrieval complete",
		zap.Int("documents", len(docs)), zap.Duration("latency", time.Since(start)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "healthy",
		"ready":  s.engines.Ready(),
	})
}
