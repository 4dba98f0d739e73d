//go:build protogen

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/libs/grpcx"
	salonv1 "github.com/md-tanzil-ahmed/salonslot/protos/gen/salon/v1"
)

func probe(ctx context.Context, cfg probeConfig) error {
	conn, err := grpcx.Dial(ctx, cfg.addr, grpcx.DialOptions{})
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.addr, err)
	}
	defer conn.Close()
	client := salonv1.NewAvailabilityServiceClient(conn)

	if cfg.dealID != "" {
		resp, err := client.GetDealSlots(ctx, &salonv1.DealSlotsRequest{
			DealId: cfg.dealID,
			Date:   cfg.date,
		})
		if err != nil {
			return err
		}
		if resp.GetClosed() {
			fmt.Printf("%s closed (%s)\n", resp.GetDate(), closedReason(resp.GetReason(), resp.GetHoliday()))
			return nil
		}
		fmt.Printf("%s %s capacity=%d\n", resp.GetDate(), resp.GetTimezone(), resp.GetCapacity())
		for _, s := range resp.GetSlots() {
			fmt.Printf("  %s  slots_left=%d\n", s.GetStartUtc().AsTime().Format(time.RFC3339), s.GetSlotsLeft())
		}
		return nil
	}

	resp, err := client.GetServiceSlots(ctx, &salonv1.ServiceSlotsRequest{
		ServiceId: cfg.serviceID,
		Date:      cfg.date,
		StaffId:   cfg.staffID,
	})
	if err != nil {
		return err
	}
	if resp.GetClosed() {
		fmt.Printf("%s closed (%s)\n", resp.GetDate(), closedReason(resp.GetReason(), resp.GetHoliday()))
		return nil
	}
	fmt.Printf("%s %s\n", resp.GetDate(), resp.GetTimezone())
	for _, s := range resp.GetSlots() {
		fmt.Printf("  %s  free=%v\n", s.GetStartUtc().AsTime().Format(time.RFC3339), s.GetFreeStaffIds())
	}
	return nil
}

func closedReason(reason, holiday string) string {
	switch {
	case holiday != "":
		return "holiday: " + holiday
	case reason != "":
		return reason
	default:
		return "closed"
	}
}
