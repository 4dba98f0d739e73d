//go:build protogen

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/md-tanzil-ahmed/salonslot/libs/config"
	"github.com/md-tanzil-ahmed/salonslot/libs/grpcx"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/grpcserver"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

func startGrpcServer(ctx context.Context, logger *slog.Logger, engine *availability.Engine) error {
	port, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerRequestIDInterceptor()),
	)
	grpcserver.Register(srv, engine)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	return nil
}
