// Package api provides the HTTP and gRPC servers for the backtester,
// exposing backtest execution, strategy discovery and run history.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"backtester/internal/config"
	"backtester/internal/engine"
	"backtester/internal/events"
)

// shutdownGrace bounds graceful shutdown once the serve context ends.
const shutdownGrace = 10 * time.Second

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	cfg    config.Server
	engine *engine.Engine
	feed   *events.Broadcaster

	router  *gin.Engine
	httpSrv *http.Server
	grpcSrv *grpc.Server
	health  *health.Server
	log     *slog.Logger
}

// NewServer creates a new Server that runs requests through eng. feed, if
// non-nil, backs the run-watching stream.
func NewServer(cfg config.Server, eng *engine.Engine, feed *events.Broadcaster) *Server {
	s := &Server{
		cfg:    cfg,
		engine: eng,
		feed:   feed,
		log:    slog.Default().With("component", "api"),
	}

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())
	s.RegisterRoutes(s.router)

	s.httpSrv = &http.Server{
		Addr:              s.httpAddr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.grpcSrv = grpc.NewServer()
	registerBacktesterServer(s.grpcSrv, &grpcService{
		engine:  eng,
		feed:    feed,
		timeout: cfg.RequestTimeout,
		log:     s.log,
	})
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcSrv, s.health)
	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s.grpcSrv)

	return s
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpAddr())
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	grpcLis, err := net.Listen("tcp", s.grpcAddr())
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve runs both servers on the given listeners. When ctx is cancelled or
// either server fails, both are shut down gracefully.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("gRPC server starting", "addr", grpcLis.Addr().String())
		if err := s.grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.log.Info("HTTP server starting", "addr", httpLis.Addr().String())
		if err := s.httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers. Run
// streams are ended first. If ctx expires, in-flight gRPC calls are cut off.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	if s.feed != nil {
		s.feed.Close()
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcSrv.GracefulStop()
		close(stopped)
	}()

	err := s.httpSrv.Shutdown(ctx)

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcSrv.Stop()
	}
	return err
}

func (s *Server) httpAddr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *Server) grpcAddr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.GRPCPort))
}

// requestLogger logs one line per HTTP request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).Round(time.Microsecond),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
