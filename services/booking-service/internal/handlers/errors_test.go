package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/availability"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/booking"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
)

func TestDomainResponseMapping(t *testing.T) {
	start := time.Date(2026, 1, 28, 11, 0, 0, 0, time.UTC)
	alts := []availability.Interval{{Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)}}

	cases := []struct {
		name   string
		err    error
		status int
		code   string
		nAlts  int
	}{
		{"invalid request", fmt.Errorf("start_time: %w", booking.ErrInvalidRequest), http.StatusBadRequest, "invalid_request", 0},
		{"same staff", booking.ErrSameStaff, http.StatusBadRequest, "invalid_request", 0},
		{"bad date", availability.ErrBadDate, http.StatusBadRequest, "invalid_date", 0},
		{"past date", &availability.PastDateError{Date: "2026-01-20"}, http.StatusUnprocessableEntity, "past_date", 0},
		{"shop closed", &availability.ShopClosedError{ShopID: "shop-1", Date: "2026-01-29"}, http.StatusUnprocessableEntity, "shop_closed", 0},
		{"no eligible staff", &availability.NoEligibleStaffError{ServiceID: "svc-1"}, http.StatusUnprocessableEntity, "no_eligible_staff", 0},
		{"ineligible staff", &booking.IneligibleStaffError{StaffID: "zed", ServiceID: "svc-1"}, http.StatusUnprocessableEntity, "ineligible_staff", 0},
		{"slot unavailable", &availability.SlotUnavailableError{Start: start, Alternatives: alts}, http.StatusConflict, "slot_unavailable", 1},
		{"capacity exceeded", &availability.CapacityExceededError{Start: start, Alternatives: alts}, http.StatusConflict, "capacity_exceeded", 1},
		{"stale slot", &booking.StaleSlotError{Start: start, Alternatives: alts}, http.StatusConflict, "stale_slot", 1},
		{"reassignment conflict", &booking.ReassignmentConflictError{StaffID: "bo", ConflictingBookingID: "b2", Start: start, End: start.Add(time.Hour)}, http.StatusConflict, "reassignment_conflict", 0},
		{"not active", &booking.NotActiveError{BookingID: "b1", Status: model.StatusCancelled}, http.StatusConflict, "booking_not_active", 0},
		{"invalid transition", &booking.InvalidTransitionError{BookingID: "b1", From: model.StatusPending, To: model.StatusCompleted}, http.StatusConflict, "invalid_transition", 0},
		{"not found", fmt.Errorf("load booking: %w", pgx.ErrNoRows), http.StatusNotFound, "not_found", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp, ok := domainResponse(tc.err)
			if !ok {
				t.Fatalf("%v did not map", tc.err)
			}
			if status != tc.status || resp.Code != tc.code {
				t.Fatalf("got %d %q, want %d %q", status, resp.Code, tc.status, tc.code)
			}
			if len(resp.Alternatives) != tc.nAlts {
				t.Fatalf("alternatives = %d, want %d", len(resp.Alternatives), tc.nAlts)
			}
		})
	}

	if _, _, ok := domainResponse(errors.New("disk on fire")); ok {
		t.Fatal("an unrecognized error must fall through to the 500 path")
	}
}

// Permanent rejections finalize the idempotency key; conflicts stay retryable
// because the slot may free up again.
func TestRetryable(t *testing.T) {
	permanent := []error{
		fmt.Errorf("customer_id: %w", booking.ErrInvalidRequest),
		&availability.PastDateError{Date: "2026-01-20"},
		&availability.ShopClosedError{ShopID: "shop-1", Date: "2026-01-29"},
		&availability.NoEligibleStaffError{ServiceID: "svc-1"},
		&booking.IneligibleStaffError{StaffID: "zed", ServiceID: "svc-1"},
	}
	for _, err := range permanent {
		if retryable(err) {
			t.Errorf("%v should not be retryable", err)
		}
	}

	transient := []error{
		&availability.SlotUnavailableError{},
		&availability.CapacityExceededError{},
		&booking.StaleSlotError{},
		errors.New("connection reset"),
	}
	for _, err := range transient {
		if !retryable(err) {
			t.Errorf("%v should be retryable", err)
		}
	}
}
