package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/MikeMC777/ecom-ledger/internal/config"
	"github.com/MikeMC777/ecom-ledger/internal/logging"
	"github.com/MikeMC777/ecom-ledger/internal/user"
	pb "github.com/MikeMC777/ecom-ledger/internal/userpb"
)

// logUnary logs every call with its code and duration.
func logUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("grpc_request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("dur", time.Since(start)),
		)
		return resp, err
	}
}

func main() {
	cfg := config.Load()
	log := logging.MustNew("user-service", cfg.Env)
	defer func() { _ = log.Sync() }()
	cfg.Log(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres_connect_failed", zap.Error(err))
	}
	defer pool.Close()

	addr := cfg.UserSvcAddr
	if _, port, err := net.SplitHostPort(addr); err == nil {
		addr = ":" + port
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal("listen_failed", zap.String("addr", addr), zap.Error(err))
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(logUnary(log)))
	pb.RegisterUserServiceServer(srv, user.NewService(user.NewPGRepo(pool), log))
	hs := health.NewServer()
	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		srv.GracefulStop()
	}()

	log.Info("listening", zap.String("addr", addr))
	if err := srv.Serve(l); err != nil {
		log.Error("grpc_server_failed", zap.Error(err))
		os.Exit(1)
	}
}
