package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/booksage/community-retriever/internal/config"
	"github.com/booksage/community-retriever/internal/infrastructure/metrics"
	httpserver "github.com/booksage/community-retriever/internal/interface/http"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const metricsNamespace = "community_retriever"

type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	services   *ServiceContext
}

func New(cfg *config.Config, logger *zap.Logger) *Server {
	collector := metrics.NewCollector(metricsNamespace)

	hs := health.NewServer()
	hs.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	services := NewServiceContext(cfg, collector, hs, logger)

	apiServer := httpserver.NewServer(services, collector, httpserver.Options{
		BatchSize:      cfg.AnswerBatchSize,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        collector.Handler(),
	}, logger)

	return &Server{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "server")),
		httpServer: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: apiServer.RegisterRoutes(),
		},
		grpcServer: grpcServer,
		health:     hs,
		services:   services,
	}
}

// Run serves HTTP and gRPC health until SIGINT/SIGTERM, then drains both.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(stop)

	lis, err := net.Listen("tcp", s.cfg.GRPCHealthAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCHealthAddr, err)
	}

	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("starting gRPC health server", zap.String("addr", s.cfg.GRPCHealthAddr))
		if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()

	go func() {
		s.logger.Info("starting REST API server", zap.String("addr", s.cfg.HTTPAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	var runErr error
	select {
	case <-stop:
		s.logger.Info("shutdown signal received, draining connections")
	case runErr = <-errCh:
		s.logger.Error("server failed", zap.Error(runErr))
	}

	s.shutdown()
	return runErr
}

func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.health.Shutdown()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown error", zap.Error(err))
	}
	s.grpcServer.GracefulStop()

	if err := s.services.Close(ctx); err != nil {
		s.logger.Warn("failed to close upstream clients", zap.Error(err))
	}
	s.logger.Info("server stopped gracefully")
}
