package pacchetto

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// slogInterceptorLogger adapts the default slog logger to the interceptor
// logging interface.
func slogInterceptorLogger() logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		slog.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func recoverPanic(ctx context.Context, p any) error {
	slog.ErrorContext(ctx, "recovered from panic in grpc handler", slog.Any("panic", p))
	return status.Error(codes.Internal, fmt.Sprintf("internal error: %v", p))
}

// CreateGRPCServer builds a server with tracing, call logging and panic
// recovery, and registers the standard health service on it. The returned
// health server is how callers flip serving status.
func CreateGRPCServer(cfg GRPCServerSettings) (*grpc.Server, *health.Server) {
	logOpts := []logging.Option{
		logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
	}
	recoveryOpts := []recovery.Option{
		recovery.WithRecoveryHandlerContext(recoverPanic),
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			logging.UnaryServerInterceptor(slogInterceptorLogger(), logOpts...),
			recovery.UnaryServerInterceptor(recoveryOpts...),
		),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(slogInterceptorLogger(), logOpts...),
			recovery.StreamServerInterceptor(recoveryOpts...),
		),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)

	if cfg.EnableReflection {
		reflection.Register(srv)
	}

	return srv, healthServer
}
