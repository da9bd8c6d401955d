package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/booksage/community-retriever/internal/config"
	"github.com/booksage/community-retriever/internal/infrastructure/server"
	httpserver "github.com/booksage/community-retriever/internal/interface/http"
	"github.com/booksage/community-retriever/internal/usecase/query"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "community-retriever",
		Short:        "Answers queries from knowledge-graph community summaries",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}
	serve := newServeCmd()
	root.AddCommand(serve, newQueryCmd())
	// Running the binary without a subcommand serves.
	root.RunE = serve.RunE
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /v1/retrieval and the gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting community answers retriever",
				zap.String("http_addr", cfg.HTTPAddr),
				zap.String("llm_provider", cfg.ResolvedLLMProvider()),
				zap.String("embedding_provider", cfg.ResolvedEmbeddingProvider()),
				zap.String("vector_store", cfg.VectorStore))

			return server.New(cfg, logger).Run()
		},
	}
}

func newQueryCmd() *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Answer a single query and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if batchSize <= 0 {
				batchSize = cfg.AnswerBatchSize
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if cfg.RequestTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()
			}

			services := server.NewServiceContext(cfg, nil, nil, logger)
			defer func() { _ = services.Close(context.Background()) }()

			engine, err := services.Engine(ctx)
			if err != nil {
				return err
			}
			docs, err := engine.Answer(ctx, strings.Join(args, " "), batchSize)
			if err != nil {
				return err
			}
			return writeDocs(cmd.OutOrStdout(), docs)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "communities answered concurrently (default ANSWER_BATCH_SIZE)")
	return cmd
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// newLogger returns a JSON production logger; verbose switches it to debug level.
func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// writeDocs prints docs in the shape returned by POST /v1/retrieval.
func writeDocs(w io.Writer, docs []query.RetrievedDoc) error {
	if docs == nil {
		docs = []query.RetrievedDoc{}
	}
	resp := httpserver.RetrievalResponse{
		Messages:      httpserver.SuccessMessage,
		RetrievedDocs: docs,
		Documents:     make([]string, 0, len(docs)),
	}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, d.Text)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
