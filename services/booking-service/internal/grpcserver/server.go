//go:build protogen

package grpcserver

import (
	"context"

	salonv1 "github.com/md-tanzil-ahmed/salonslot/protos/gen/salon/v1"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// server exposes the availability engine to other services over gRPC. It is
// read-only: booking writes stay on the HTTP surface where idempotency keys
// and conflict re-checks live.
type server struct {
	salonv1.UnimplementedAvailabilityServiceServer
	engine *availability.Engine
}

func Register(grpcServer *grpc.Server, engine *availability.Engine) {
	salonv1.RegisterAvailabilityServiceServer(grpcServer, &server{engine: engine})
}

func (s *server) GetServiceSlots(ctx context.Context, req *salonv1.ServiceSlotsRequest) (*salonv1.ServiceSlotsResponse, error) {
	day, err := s.engine.ServiceSlots(ctx, availability.ServiceQuery{
		ServiceID: req.GetServiceId(),
		Date:      req.GetDate(),
		StaffID:   req.GetStaffId(),
	})
	if err != nil {
		return nil, err
	}

	resp := &salonv1.ServiceSlotsResponse{
		ServiceId: day.ServiceID,
		ShopId:    day.ShopID,
		Date:      day.Date,
		Timezone:  day.Timezone,
		Closed:    day.Closed,
		Reason:    day.Reason,
		Holiday:   day.Holiday,
	}
	for _, slot := range day.Slots {
		resp.Slots = append(resp.Slots, &salonv1.ServiceSlot{
			StartUtc:     timestamppb.New(slot.Start.UTC()),
			EndUtc:       timestamppb.New(slot.End.UTC()),
			FreeStaffIds: slot.FreeStaffIDs,
		})
	}
	return resp, nil
}

func (s *server) GetDealSlots(ctx context.Context, req *salonv1.DealSlotsRequest) (*salonv1.DealSlotsResponse, error) {
	day, err := s.engine.DealSlots(ctx, availability.DealQuery{
		DealID: req.GetDealId(),
		Date:   req.GetDate(),
	})
	if err != nil {
		return nil, err
	}

	resp := &salonv1.DealSlotsResponse{
		DealId:   day.DealID,
		ShopId:   day.ShopID,
		Date:     day.Date,
		Timezone: day.Timezone,
		Capacity: int32(day.Capacity),
		Closed:   day.Closed,
		Reason:   day.Reason,
		Holiday:  day.Holiday,
	}
	for _, slot := range day.Slots {
		resp.Slots = append(resp.Slots, &salonv1.DealSlot{
			StartUtc:  timestamppb.New(slot.Start.UTC()),
			EndUtc:    timestamppb.New(slot.End.UTC()),
			SlotsLeft: int32(slot.SlotsLeft),
		})
	}
	return resp, nil
}
