package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/outbox"
)

// Lifecycle event topics. One topic per event type; the outbox publisher
// routes on EventType.
const (
	EventCreated         = "booking.created.v1"
	EventConfirmed       = "booking.confirmed.v1"
	EventCompleted       = "booking.completed.v1"
	EventCancelled       = "booking.cancelled.v1"
	EventNoShow          = "booking.no_show.v1"
	EventRescheduled     = "booking.rescheduled.v1"
	EventStaffReassigned = "booking.staff_reassigned.v1"
)

// lifecyclePayload is the event body shared by all booking lifecycle topics.
// Event-specific fields stay empty elsewhere.
type lifecyclePayload struct {
	BookingID   string    `json:"booking_id"`
	ShopID      string    `json:"shop_id"`
	Kind        string    `json:"kind"`
	ServiceID   string    `json:"service_id,omitempty"`
	DealID      string    `json:"deal_id,omitempty"`
	StaffID     string    `json:"staff_id,omitempty"`
	CustomerID  string    `json:"customer_id"`
	StartTime   time.Time `json:"start_time"`
	DurationMin int       `json:"duration_minutes"`
	PriceCents  int64     `json:"price_cents"`
	Status      string    `json:"status"`

	OldStart    *time.Time `json:"old_start,omitempty"`
	OldStaffID  string     `json:"old_staff_id,omitempty"`
	CancelledBy string     `json:"cancelled_by,omitempty"`
	CancelNote  string     `json:"cancel_reason,omitempty"`
	PaymentID   string     `json:"payment_id,omitempty"`
}

// SystemCancelledPayload builds the booking.cancelled.v1 body for cancels
// applied outside the workflow Service, such as the pending-expiry sweep.
func SystemCancelledPayload(b model.Booking, reason string) ([]byte, error) {
	return json.Marshal(lifecyclePayload{
		BookingID:   b.ID,
		ShopID:      b.ShopID,
		Kind:        string(b.Kind),
		ServiceID:   b.ServiceID,
		DealID:      b.DealID,
		StaffID:     b.StaffID,
		CustomerID:  b.CustomerID,
		StartTime:   b.StartTime,
		DurationMin: b.DurationMin,
		PriceCents:  b.PriceCents,
		Status:      string(model.StatusCancelled),
		CancelledBy: string(model.CancelledBySystem),
		CancelNote:  reason,
	})
}

func (s *Service) emitLifecycle(ctx context.Context, tx Tx, eventType string, b *model.Booking, mutate func(*lifecyclePayload)) error {
	p := lifecyclePayload{
		BookingID:   b.ID,
		ShopID:      b.ShopID,
		Kind:        string(b.Kind),
		ServiceID:   b.ServiceID,
		DealID:      b.DealID,
		StaffID:     b.StaffID,
		CustomerID:  b.CustomerID,
		StartTime:   b.StartTime,
		DurationMin: b.DurationMin,
		PriceCents:  b.PriceCents,
		Status:      string(b.Status),
	}
	if mutate != nil {
		mutate(&p)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return tx.InsertEvent(ctx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       body,
	})
}
