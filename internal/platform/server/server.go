package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// Options はサーバー構成です。GRPCHealthAddr が空の場合、gRPC ヘルスサーバーは起動しません。
type Options struct {
	HTTPAddr        string
	GRPCHealthAddr  string
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// Server は HTTP API と gRPC ヘルスチェックのライフサイクルを管理します。
type Server struct {
	opts       Options
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
}

// New は handler を公開する Server を構築します。
func New(handler http.Handler, opts Options, grpcOpts ...grpc.ServerOption) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		opts: opts,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}

	if opts.GRPCHealthAddr != "" {
		s.grpcServer = grpc.NewServer(grpcOpts...)
		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
		reflection.Register(s.grpcServer)
	}

	return s
}

// Run は設定されたアドレスで待ち受け、コンテキストがキャンセルされるとグレースフルに停止します。
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.opts.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.HTTPAddr, err)
	}

	var grpcLis net.Listener
	if s.grpcServer != nil {
		grpcLis, err = net.Listen("tcp", s.opts.GRPCHealthAddr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen on %s: %w", s.opts.GRPCHealthAddr, err)
		}
	}

	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve は与えられたリスナーで待ち受けます。grpcLis は gRPC ヘルスサーバーが無効な場合 nil で構いません。
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.opts.Logger.Info().Str("addr", httpLis.Addr().String()).Msg("http server listening")
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	if s.grpcServer != nil && grpcLis != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		g.Go(func() error {
			s.opts.Logger.Info().Str("addr", grpcLis.Addr().String()).Msg("grpc health server listening")
			if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve grpc health: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.opts.Logger.Info().Dur("timeout", s.opts.ShutdownTimeout).Msg("shutting down")

	if s.health != nil {
		s.health.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
