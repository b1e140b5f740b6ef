package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"clima-relay/internal/config"
	"clima-relay/internal/tweets"
)

func RunTweets(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"grpcPort", cfg.Tweets.Port,
	)

	addr := net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.Tweets.Port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv, healthSrv := tweets.NewServer(slog.Default())
	return serveGRPC(ctx, srv, healthSrv, lis)
}

// serveGRPC mirrors serveHTTP: serve until ctx is done, report NOT_SERVING,
// then stop gracefully within shutdownTimeout.
func serveGRPC(ctx context.Context, srv *grpc.Server, healthSrv *health.Server, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("grpc listening", "addr", lis.Addr().String())
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("grpc shutting down")
	healthSrv.Shutdown()

	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()
	select {
	case <-stopped:
	case <-timer.C:
		slog.Warn("grpc graceful stop timed out")
		srv.Stop()
	}

	if err := <-errCh; err != nil {
		return err
	}
	return ctx.Err()
}
