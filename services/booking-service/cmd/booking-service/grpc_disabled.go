//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *availability.Engine) error {
	return nil
}
